package repository

import (
	"database/sql"

	"go.uber.org/zap"
)

// Store 汇总所有 Repository，共享同一个连接
type Store struct {
	DB      *sql.DB
	Dialect Dialect

	PumpEvents        *PumpEventsRepository
	Alerts            *AlertsRepository
	Contacts          *ContactsRepository
	InsulinConfigs    *InsulinConfigRepository
	EscalationConfigs *EscalationConfigRepository
	EscalationEvents  *EscalationEventsRepository
	PatientChats      *PatientChatsRepository
}

// NewStore 创建 Store
func NewStore(db *sql.DB, dialect Dialect, defaultDIA float64, logger *zap.Logger) *Store {
	return &Store{
		DB:                db,
		Dialect:           dialect,
		PumpEvents:        NewPumpEventsRepository(db, dialect, logger),
		Alerts:            NewAlertsRepository(db, dialect, logger),
		Contacts:          NewContactsRepository(db, dialect, logger),
		InsulinConfigs:    NewInsulinConfigRepository(db, dialect, defaultDIA, logger),
		EscalationConfigs: NewEscalationConfigRepository(db, dialect, logger),
		EscalationEvents:  NewEscalationEventsRepository(db, dialect, logger),
		PatientChats:      NewPatientChatsRepository(db, dialect, logger),
	}
}
