package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed      = errors.New("validation failed")
	ErrInvalidCompetitionID  = errors.New("invalid competition id")
	ErrPayoutStructureEmpty  = errors.New("prize pool payout structure is empty")
	ErrRewardConfigInvalid   = errors.New("coin reward configuration is invalid")
	ErrTrialRewardIncomplete = errors.New("event reward is missing trial duration or qualification threshold")

	// Ошибки конфликтов
	ErrCompetitionAlreadySettled = errors.New("competition prizes were already distributed")
	ErrCompetitionStatusConflict = errors.New("competition status was changed concurrently")
	ErrSettlementLocked          = errors.New("competition settlement is held by another run")

	// Ошибки аутентификации
	ErrServiceTokenInvalid = errors.New("service token is missing or invalid")

	// Ошибки, специфичные для сущностей
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrPrizePoolNotFound   = errors.New("prize pool not found")
	ErrUserNotFound        = errors.New("user not found")
)
