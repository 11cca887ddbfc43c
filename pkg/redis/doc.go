// Package redis connects to the Redis server backing the Redis subscription
// store.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	ready := redis.Healthcheck(client)
//
// Connect retries a PING with exponential backoff until it succeeds, the
// attempts run out or ConnectTimeout passes.
package redis
