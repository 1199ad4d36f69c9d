package main

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dapurkita/resep/internal/config"
	"github.com/dapurkita/resep/internal/db"
	"github.com/dapurkita/resep/internal/migrations"
	"github.com/dapurkita/resep/internal/seed"
)

type server struct {
	db *sql.DB
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, "migrations"); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
		stats, err := seed.Run(database)
		if err != nil {
			log.Fatalf("failed to run demo seed: %v", err)
		}
		if stats.Inserts > 0 {
			log.Printf("seeded %d demo rows", stats.Inserts)
		}
	}

	srv := &server{db: database}

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/ingredients", s.handleIngredientsList)
	r.Post("/ingredients", s.handleIngredientsCreate)
	r.Post("/ingredients/{id}", s.handleIngredientsUpdate)
	r.Get("/recipes", s.handleRecipesList)
	r.Post("/recipes", s.handleRecipesCreate)
	r.Post("/recipes/{id}", s.handleRecipesUpdate)
	r.Get("/recipes/{id}/cost", s.handleRecipeCost)
	r.Post("/recipes/{id}/price", s.handleRecipePrice)
	r.Get("/recipes/{id}/history", s.handleRecipeHistory)
	r.Get("/channels", s.handleChannelsList)
	r.Post("/channels", s.handleChannelsCreate)
	r.Post("/bulk-pricing", s.handleBulkPricing)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
