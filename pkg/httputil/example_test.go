package httputil_test

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/strikegate/pkg/config"
	"github.com/wonny/strikegate/pkg/httputil"
	"github.com/wonny/strikegate/pkg/logger"
)

// Example_basic demonstrates a JSON GET with retries and a local rate limit
func Example_basic() {
	cfg := &config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}
	log := logger.New(cfg)

	client := httputil.NewWithTimeout(log, 3*time.Second).
		WithRetry(2, 200*time.Millisecond).
		WithLimiter(rate.NewLimiter(rate.Limit(1), 1))

	var out map[string]interface{}
	if err := client.GetJSON(context.Background(), "https://api.kraken.com/0/public/Time", &out); err != nil {
		fmt.Printf("request failed: %v\n", err)
		return
	}
	fmt.Println(out["result"])
}

// Example_disableRetry demonstrates a single-shot request
func Example_disableRetry() {
	client := httputil.New(logger.Nop()).DisableRetry()

	resp, err := client.Get(context.Background(), "https://api.kraken.com/0/public/SystemStatus")
	if err != nil {
		fmt.Printf("request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()
	fmt.Println(resp.StatusCode)
}
