package models

// All lists the tables managed by AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&UserRole{},
		&Assignment{},
		&Submission{},
		&Grade{},
		&ActivityLog{},
	}
}
