package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"market-intel-bot/internal/backtest"
	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/signal"
	"market-intel-bot/internal/tickclient"
	"market-intel-bot/internal/upstream"
)

func main() {
	var (
		ticker     = flag.String("ticker", "SPY", "symbol to replay")
		days       = flag.Int("days", 365, "calendar days of daily bars to fetch")
		capital    = flag.Float64("capital", 100_000, "starting capital")
		commission = flag.Float64("commission", 0.0005, "fees per side as a fraction of notional")
		allocation = flag.Float64("allocation", 0.10, "equity fraction per position")
		maxHold    = flag.Int("max-hold", 5, "bars before a stale position is timed out")
		regimeFlag = flag.String("regime", "RANGEBOUND", "assumed market regime for setup generation")
	)
	flag.Parse()

	godotenv.Load()

	apiKey := os.Getenv("POLYGON_API_KEY")
	if apiKey == "" {
		fmt.Println("POLYGON_API_KEY required")
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{Level: "WARN", Output: "stderr", Component: "backtest"})
	client := tickclient.New(os.Getenv("POLYGON_BASE_URL"), apiKey,
		upstream.NewSlidingWindow(upstream.DefaultWindowLimit, upstream.DefaultWindow), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	symbol := strings.ToUpper(*ticker)
	to := time.Now()
	from := to.AddDate(0, 0, -*days)

	fmt.Printf("Fetching %s daily bars %s .. %s\n", symbol,
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	bars, err := client.Aggregates(ctx, symbol, 1, "day", from, to)
	if err != nil {
		fmt.Printf("Failed to fetch bars: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Got %d bars\n", len(bars))

	engine := backtest.NewEngine(*capital, *commission, *allocation, *maxHold)
	strategy := backtest.TechnicalStrategy(symbol, signal.Regime(strings.ToUpper(*regimeFlag)))

	result, err := engine.Run(bars, strategy)
	if err != nil {
		fmt.Printf("Backtest failed: %v\n", err)
		os.Exit(1)
	}

	engine.PrintResults(result)
}
