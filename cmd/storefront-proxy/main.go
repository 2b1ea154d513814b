// The storefront proxy exposes the client library over HTTP. It holds one
// backend session (credential, refresh schedule, response cache) and forwards
// /api requests through the full request pipeline, so callers get caching,
// retries, and error normalization without embedding the library.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/brightbasket/storefront-client/pkg/api"
	"github.com/brightbasket/storefront-client/pkg/cache"
	"github.com/brightbasket/storefront-client/pkg/logging"
	"github.com/brightbasket/storefront-client/pkg/session"
	"github.com/brightbasket/storefront-client/pkg/storefront"
	"github.com/brightbasket/storefront-client/pkg/token"
)

type config struct {
	BaseURL   string `env:"STOREFRONT_BASE_URL,required"`
	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// app is the explicitly constructed client stack. Construction order matters:
// session store, then token manager, then cache, then pipeline, then services.
type app struct {
	manager   *token.Manager
	responses *cache.Cache
	client    *api.Client
	services  *storefront.Services
}

func buildApp(baseURL string, store session.Store) (*app, error) {
	manager, err := token.NewManager(store, token.DefaultConfig(baseURL+"/auth/me"), logging.NewLogger("token-manager"))
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	responses := cache.New(cache.DefaultConfig(), logging.NewLogger("response-cache"))

	client, err := api.New(api.DefaultConfig(baseURL, responses, manager))
	if err != nil {
		responses.Close()
		return nil, fmt.Errorf("api client: %w", err)
	}

	services, err := storefront.NewServices(client, manager, store)
	if err != nil {
		responses.Close()
		return nil, fmt.Errorf("services: %w", err)
	}

	return &app{
		manager:   manager,
		responses: responses,
		client:    client,
		services:  services,
	}, nil
}

func (a *app) Close() {
	a.manager.CancelSchedule()
	a.responses.Close()
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")

	store := session.NewRedisStore(redisClient, logging.NewLogger("session-store"))
	application, err := buildApp(cfg.BaseURL, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build client stack")
	}
	defer application.Close()

	// Pick up a session persisted by a previous run.
	if user, found, err := application.services.Auth.Resume(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not resume persisted session")
	} else if found {
		logger.Info().Str("email", user.Email).Msg("Resumed persisted session")
	} else {
		logger.Info().Msg("Starting without a session")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/auth/login", loginHandler(application.services))
	mux.HandleFunc("/api/auth/logout", logoutHandler(application.services))
	mux.HandleFunc("/api/", apiProxyHandler(application.client))

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("backend", cfg.BaseURL).Msg("Starting storefront proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// loginHandler establishes the proxy's backend session. The credential never
// leaves the proxy; callers only get the user record back.
func loginHandler(services *storefront.Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Malformed login request")
			return
		}

		user, err := services.Auth.Login(r.Context(), creds.Email, creds.Password)
		if err != nil {
			writeJSONError(w, errorStatus(err, http.StatusUnauthorized), api.Message(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"user": user},
		})
	}
}

func logoutHandler(services *storefront.Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := services.Auth.Logout(r.Context()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, api.Message(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// apiProxyHandler forwards a request through the pipeline. The /api prefix is
// stripped, so /api/catalog/items reaches the backend as /catalog/items.
func apiProxyHandler(client *api.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")

		var body any
		if r.Body != nil {
			data, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "Unreadable request body")
				return
			}
			if len(data) > 0 {
				body = json.RawMessage(data)
			}
		}

		resp, err := client.Do(r.Context(), api.Request{
			Method: r.Method,
			Path:   path,
			Query:  r.URL.Query(),
			Body:   body,
		})
		if err != nil {
			writeJSONError(w, errorStatus(err, http.StatusBadGateway), api.Message(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		w.Write(resp.Body)
	}
}

// errorStatus maps a pipeline error to an HTTP status for the proxy caller.
func errorStatus(err error, fallback int) int {
	if errors.Is(err, api.ErrAuthenticationRequired) {
		return http.StatusUnauthorized
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status > 0 {
		return apiErr.Status
	}
	return fallback
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message},
	})
}
