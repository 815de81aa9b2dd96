// Package redis connects the service to Redis with go-redis/v9.
//
// Redis backs the cross-instance tenant locks (pkg/lock) and the notification
// de-duplication markers (pkg/notify). Both build their keys with Key so every
// key lives under Config.KeyPrefix.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	locker := lock.NewRedis(client, lock.WithKeyPrefix(redis.Key(cfg.KeyPrefix, "lock")))
//
// Healthcheck plugs into the readiness endpoint of pkg/api.
package redis
