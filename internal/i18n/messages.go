package i18n

// Key names a translatable message.
type Key string

const (
	ErrRoomNotFound       Key = "error.room_not_found"
	ErrCarAlreadyClaimed  Key = "error.car_already_claimed"
	ErrNotOwner           Key = "error.not_owner"
	ErrInvalidPermutation Key = "error.invalid_permutation"
	ErrAlreadyBet         Key = "error.already_bet"
	ErrPositionsNotSet    Key = "error.positions_not_set"
	ErrNotAllPlayersBet   Key = "error.not_all_players_bet"
	ErrWrongPhase         Key = "error.wrong_phase"
	ErrPlayerNotFound     Key = "error.player_not_found"
	ErrPlayerExists       Key = "error.player_exists"
	ErrUnknownCar         Key = "error.unknown_car"
	ErrInvalidPrice       Key = "error.invalid_price"
	ErrRoundInProgress    Key = "error.round_in_progress"
	ErrNotHost            Key = "error.not_host"
	ErrNotFinished        Key = "error.not_finished"
	ErrInvalidName        Key = "error.invalid_name"
	ErrInvalidRequest     Key = "error.invalid_request"
	ErrContention         Key = "error.contention"
	ErrRateLimited        Key = "error.rate_limited"
	ErrInternal           Key = "error.internal"
)

var catalogs = map[Locale]map[Key]string{
	PortugueseBR: {
		ErrRoomNotFound:       "Sala não encontrada",
		ErrCarAlreadyClaimed:  "Carro já foi comprado",
		ErrNotOwner:           "Você não é dono deste carro",
		ErrInvalidPermutation: "Cada carro deve aparecer exatamente uma vez",
		ErrAlreadyBet:         "Você já apostou nesta rodada",
		ErrPositionsNotSet:    "Aguarde o anfitrião definir as posições",
		ErrNotAllPlayersBet:   "Nem todos os jogadores apostaram",
		ErrWrongPhase:         "Ação não permitida nesta fase",
		ErrPlayerNotFound:     "Jogador não encontrado",
		ErrPlayerExists:       "Jogador já está na sala",
		ErrUnknownCar:         "Carro desconhecido",
		ErrInvalidPrice:       "Preço inválido",
		ErrRoundInProgress:    "As apostas desta rodada já começaram",
		ErrNotHost:            "Apenas o anfitrião pode fazer isso",
		ErrNotFinished:        "A corrida ainda não terminou",
		ErrInvalidName:        "Nome inválido",
		ErrInvalidRequest:     "Requisição inválida",
		ErrContention:         "Sala ocupada, tente novamente",
		ErrRateLimited:        "Muitas requisições, aguarde um momento",
		ErrInternal:           "Erro interno do servidor",

		"phase.auction":  "Leilão",
		"phase.betting1": "Apostas - Rodada 1",
		"phase.betting2": "Apostas - Rodada 2",
		"phase.betting3": "Apostas - Rodada 3",
		"phase.finished": "Corrida encerrada",

		"car.black":  "Preto",
		"car.blue":   "Azul",
		"car.green":  "Verde",
		"car.orange": "Laranja",
		"car.red":    "Vermelho",
		"car.yellow": "Amarelo",
	},
	English: {
		ErrRoomNotFound:       "Room not found",
		ErrCarAlreadyClaimed:  "Car already claimed",
		ErrNotOwner:           "You do not own this car",
		ErrInvalidPermutation: "Every car must appear exactly once",
		ErrAlreadyBet:         "You already bet this round",
		ErrPositionsNotSet:    "Wait for the host to set positions",
		ErrNotAllPlayersBet:   "Not all players have bet",
		ErrWrongPhase:         "Not allowed in this phase",
		ErrPlayerNotFound:     "Player not found",
		ErrPlayerExists:       "Player already in room",
		ErrUnknownCar:         "Unknown car",
		ErrInvalidPrice:       "Invalid price",
		ErrRoundInProgress:    "Betting has already started this round",
		ErrNotHost:            "Only the host can do that",
		ErrNotFinished:        "The race has not finished yet",
		ErrInvalidName:        "Invalid name",
		ErrInvalidRequest:     "Invalid request",
		ErrContention:         "Room is busy, try again",
		ErrRateLimited:        "Too many requests, slow down",
		ErrInternal:           "Internal server error",

		"phase.auction":  "Auction",
		"phase.betting1": "Betting - Round 1",
		"phase.betting2": "Betting - Round 2",
		"phase.betting3": "Betting - Round 3",
		"phase.finished": "Race finished",

		"car.black":  "Black",
		"car.blue":   "Blue",
		"car.green":  "Green",
		"car.orange": "Orange",
		"car.red":    "Red",
		"car.yellow": "Yellow",
	},
}
