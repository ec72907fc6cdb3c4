package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"tenderbench/internal/auth"
	"tenderbench/internal/export"
	"tenderbench/internal/handlers/tenders"
	"tenderbench/internal/response"
	"tenderbench/internal/searchtext"
	"tenderbench/internal/server"
	"tenderbench/internal/store"
	"tenderbench/internal/websocket"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.GenKey {
		key, hash, err := auth.GenerateKey()
		if err != nil {
			log.Fatal("generate key: ", err)
		}
		fmt.Printf("api key:      %s\napi_key_hash: %s\n", key, hash)
		return
	}

	keys, err := auth.NewKeyChecker(cfg.APIKeyHash)
	if err != nil {
		log.Fatal("api_key_hash: ", err)
	}

	dict, err := searchtext.LoadDictionary(cfg.Dictionary)
	if err != nil {
		log.Fatal("dictionary: ", err)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatal("DB init failed: ", err)
	}
	defer db.Close()

	st := store.New(db, searchtext.NewNormalizer(dict))
	if cfg.SeedDemo {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := seedDemo(ctx, st); err != nil {
			log.Printf("db: demo seed failed: %v", err)
		}
		cancel()
	}

	hub := websocket.NewHub()
	h := &tenders.Handler{
		Store:             st,
		Hub:               hub,
		MinScore:          cfg.MinScore,
		AutopickThreshold: cfg.AutopickThreshold,
		OfferLimit:        cfg.OfferLimit,
		UnknownTotals:     cfg.UnknownTotalPolicy(),
		Printer:           export.NewPrinter(cfg.Locale),
	}
	app := &server.App{
		DB:        db,
		Store:     st,
		Hub:       hub,
		Keys:      keys,
		Limiter:   server.NewRateLimiter(),
		RateLimit: cfg.RateLimit,
	}

	if !keys.Enabled() {
		log.Printf("api key not configured; write endpoints are open")
	}
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("tenderbench starting on http://localhost%s (db %s)", addr, cfg.DBPath)
	log.Fatal(http.ListenAndServe(addr, app.Wrap(newRouter(app, h))))
}

// newRouter maps /api/v1/ paths onto the tender handler.
func newRouter(app *server.App, h *tenders.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.HandleWebSocket(app.Hub, w, r)
	})

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		case path == "health" && r.Method == "GET":
			handleHealth(app, w, r)

		// Tender projects
		case parts[0] == "tenders" && len(parts) == 1 && r.Method == "GET":
			h.ListTenders(w, r)
		case parts[0] == "tenders" && len(parts) == 1 && r.Method == "POST":
			h.CreateTender(w, r)

		// Tender items
		case parts[0] == "tenders" && len(parts) == 3 && parts[1] == "items" && r.Method == "PATCH":
			h.UpdateItem(w, r, parts[2])
		case parts[0] == "tenders" && len(parts) == 4 && parts[1] == "items" && parts[3] == "offers" && r.Method == "GET":
			h.SearchOffers(w, r, parts[2])
		case parts[0] == "tenders" && len(parts) == 4 && parts[1] == "items" && parts[3] == "matches" && r.Method == "GET":
			h.SupplierMatches(w, r, parts[2])
		case parts[0] == "tenders" && len(parts) == 4 && parts[1] == "items" && parts[3] == "select" && r.Method == "POST":
			h.SelectOffer(w, r, parts[2])
		case parts[0] == "tenders" && len(parts) == 4 && parts[1] == "items" && parts[3] == "clear" && r.Method == "POST":
			h.ClearOffer(w, r, parts[2])

		case parts[0] == "tenders" && len(parts) == 2 && r.Method == "GET":
			h.GetTender(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 2 && r.Method == "DELETE":
			h.DeleteTender(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "upload" && r.Method == "POST":
			h.UploadTender(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "items" && r.Method == "POST":
			h.AddItem(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "suppliers" && r.Method == "GET":
			h.GetTenderSuppliers(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "suppliers" && r.Method == "PUT":
			h.SetTenderSuppliers(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "matrix" && r.Method == "GET":
			h.Matrix(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "autopick" && r.Method == "POST":
			h.AutoPick(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "cart" && r.Method == "GET":
			h.Cart(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "export" && r.Method == "GET":
			h.Export(w, r, parts[1])
		case parts[0] == "tenders" && len(parts) == 3 && parts[2] == "orders" && r.Method == "POST":
			h.CreateOrders(w, r, parts[1])

		// Orders
		case parts[0] == "orders" && len(parts) == 1 && r.Method == "GET":
			h.ListOrders(w, r)
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "GET":
			h.GetOrder(w, r, parts[1])

		// Suppliers
		case parts[0] == "suppliers" && len(parts) == 1 && r.Method == "GET":
			h.ListSuppliers(w, r)
		case parts[0] == "suppliers" && len(parts) == 1 && r.Method == "POST":
			h.CreateSupplier(w, r)
		case parts[0] == "suppliers" && len(parts) == 2 && r.Method == "DELETE":
			h.DeleteSupplier(w, r, parts[1])
		case parts[0] == "suppliers" && len(parts) == 3 && parts[2] == "items" && r.Method == "GET":
			h.ListSupplierItems(w, r, parts[1])
		case parts[0] == "suppliers" && len(parts) == 3 && parts[2] == "items" && r.Method == "POST":
			h.AddSupplierItem(w, r, parts[1])
		case parts[0] == "suppliers" && len(parts) == 3 && parts[2] == "pricelist" && r.Method == "POST":
			h.UploadPriceList(w, r, parts[1])

		// Catalog
		case path == "search" && r.Method == "GET":
			h.SearchCatalog(w, r)
		case path == "sheets" && r.Method == "POST":
			h.ListSheets(w, r)

		default:
			response.Err(w, "not found", http.StatusNotFound)
		}
	})
	return mux
}

func handleHealth(app *server.App, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := app.DB.PingContext(ctx); err != nil {
		log.Printf("health: db ping failed: %v", err)
		response.Err(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	response.JSON(w, map[string]any{
		"status":     "ok",
		"ws_clients": app.Hub.Count(),
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
