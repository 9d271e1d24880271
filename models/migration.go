package models

import (
	"log"

	"github.com/pharmadatalab/officine_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Invoice{}, &InvoiceLine{},
		&CommercialAgreement{}, &RebateTier{},
		&VerificationRun{}, &Anomaly{},
	)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("Migration completed")
}
