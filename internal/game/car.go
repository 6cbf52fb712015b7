package game

import "fmt"

// Car identifies one of the six race cars. The set is closed.
type Car string

const (
	Black  Car = "black"
	Blue   Car = "blue"
	Green  Car = "green"
	Orange Car = "orange"
	Red    Car = "red"
	Yellow Car = "yellow"
)

// NumCars is the number of cars in every race.
const NumCars = 6

// AllCars lists the cars in their canonical order.
var AllCars = [NumCars]Car{Black, Blue, Green, Orange, Red, Yellow}

// Valid reports whether c is one of the six cars.
func (c Car) Valid() bool {
	switch c {
	case Black, Blue, Green, Orange, Red, Yellow:
		return true
	}
	return false
}

func (c Car) String() string {
	return string(c)
}

// ParseCar converts a car identifier into a Car.
func ParseCar(s string) (Car, error) {
	c := Car(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCar, s)
	}
	return c, nil
}

// ranking converts an ordered list of cars into car -> 1-based rank.
// The list must contain every car exactly once.
func ranking(order []Car) (map[Car]int, error) {
	if len(order) != NumCars {
		return nil, fmt.Errorf("%w: got %d cars, want %d", ErrInvalidPermutation, len(order), NumCars)
	}
	ranks := make(map[Car]int, NumCars)
	for i, c := range order {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown car %q", ErrInvalidPermutation, c)
		}
		if _, dup := ranks[c]; dup {
			return nil, fmt.Errorf("%w: %s listed twice", ErrInvalidPermutation, c)
		}
		ranks[c] = i + 1
	}
	return ranks, nil
}

// isPermutation reports whether positions maps every car onto 1..6 exactly once.
func isPermutation(positions map[Car]int) bool {
	if len(positions) != NumCars {
		return false
	}
	var seen [NumCars + 1]bool
	for _, c := range AllCars {
		pos, ok := positions[c]
		if !ok || pos < 1 || pos > NumCars || seen[pos] {
			return false
		}
		seen[pos] = true
	}
	return true
}
