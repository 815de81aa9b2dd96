// Package config loads typed configuration structs from environment
// variables with caarlos0/env, after applying an optional .env file with
// joho/godotenv.
//
// Every package that needs configuration declares a struct with env tags
// (pg.Config, redis.Config, meter.Config, ...) and cmd/meterd loads them:
//
//	var pgCfg pg.Config
//	if err := config.Load(&pgCfg); err != nil {
//	    return err
//	}
//
// Load caches one value per type for the life of the process. Parse skips the
// cache, which tests use together with t.Setenv.
package config
