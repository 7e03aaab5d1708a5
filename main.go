package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"planity/auth"
	"planity/gateway"
	"planity/remote"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.SetLevel(log.GetLevel())

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(redisOptions(redisConn))

	var store remote.Store
	if connStr := os.Getenv("STORAGE_CONNECTION_STRING"); connStr != "" {
		tasksTable := os.Getenv("TASKS_TABLE")
		categoriesTable := os.Getenv("CATEGORIES_TABLE")
		if tasksTable == "" || categoriesTable == "" {
			log.Fatal("missing table config")
		}
		pollInterval := remote.DefaultPollInterval
		if v := os.Getenv("TABLES_POLL_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid TABLES_POLL_INTERVAL: %v", err)
			}
			pollInterval = d
		}
		tables := map[string]string{
			remote.TasksCollection:      tasksTable,
			remote.CategoriesCollection: categoriesTable,
		}
		ts, err := remote.NewTableStore(connStr, tables, pollInterval, logger)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		store = ts
	} else {
		store = remote.NewRedisStore(rc, logger)
	}

	var accounts *auth.Service
	var verifier *auth.Verifier
	if domain := os.Getenv("AUTH0_DOMAIN"); domain != "" {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		if jwtAudience == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		verifier = auth.NewJWKSVerifier(jwks, jwtAudience, "https://"+domain+"/")
	} else {
		secret := os.Getenv("AUTH_TOKEN_SECRET")
		if secret == "" {
			log.Fatal("missing auth config: set AUTH0_DOMAIN or AUTH_TOKEN_SECRET")
		}
		accounts = auth.NewService(rc, []byte(secret), logger)
		verifier = auth.NewLocalVerifier([]byte(secret))
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	gw := gateway.New(store, accounts, verifier, logger)
	gw.Register(e)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// redisOptions accepts both redis URLs and the comma-separated
// host,password=...,ssl=... form Azure hands out.
func redisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
