package main

import (
	"time"

	"github.com/cppla/qaboard/config"
	"github.com/cppla/qaboard/models"
	"github.com/cppla/qaboard/routes"
	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Question{},
		&models.Answer{},
		&models.UploadedFile{},
	)

	st := store.New(db)
	r := routes.SetupRouter(st)

	// Background cleanup for expired reply attachments (best-effort)
	utils.StartAttachmentCleaner(db, 5*time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
