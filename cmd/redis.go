package cmd

import (
	"context"
	"fmt"
	"time"

	"ESMP/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Test the Redis cache connection",
	Long:  `Connect to the Redis cache backend and run a write, read and delete round trip.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rc.Close()
		fmt.Println("Connected.")

		if err := rc.Check(ctx); err != nil {
			return fmt.Errorf("redis round trip failed: %w", err)
		}
		fmt.Println("Round trip OK.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
