package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidLimits возвращается при некорректной конфигурации риск-лимитов
	ErrInvalidLimits = errors.New("invalid risk limits")

	// ErrInvalidConfig возвращается при некорректной конфигурации симулятора
	ErrInvalidConfig = errors.New("invalid simulator config")

	// ErrInvalidSnapshot возвращается при повреждённом снапшоте рынка
	ErrInvalidSnapshot = errors.New("invalid market snapshot")

	// ErrInvalidSignal возвращается при некорректном торговом сигнале
	ErrInvalidSignal = errors.New("invalid trade signal")

	// ErrInsufficientCapital возвращается когда стоимость ордера превышает капитал
	ErrInsufficientCapital = errors.New("insufficient capital")

	// ErrExposureBreach возвращается когда мутация леджера нарушила бы лимит экспозиции
	ErrExposureBreach = errors.New("exposure limit breach")

	// ErrUnknownTicker возвращается при обращении к рынку без открытой позиции
	ErrUnknownTicker = errors.New("unknown ticker")

	// ErrOrderNotFound возвращается когда ордер не найден в очереди
	ErrOrderNotFound = errors.New("order not found")

	// ErrTradingHalted возвращается при попытке торговать в состоянии halted
	ErrTradingHalted = errors.New("trading halted")

	// ErrEmptyDataset возвращается когда бэктесту не хватает данных для разбиения
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrUnauthorized возвращается при ошибке авторизации
	ErrUnauthorized = errors.New("unauthorized")
)
