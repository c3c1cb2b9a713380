package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/intake-api/internal/types"
)

// The simulation stands in for the rest of the trading stack: it runs a
// stub matching engine and market-data publisher, points a running
// gateway at them, and drives randomized submissions and fill reports to
// exercise sequencing, fan-out, and the relay end to end.

var symbols = []string{"AAPL", "MSFT", "GOOG", "AMZN", "TSLA"}

type stubTarget struct {
	name string

	ordersReceived     atomic.Int64
	executionsReceived atomic.Int64

	// failRate is the probability a delivery is answered with a 500,
	// exercising the gateway's per-target failure handling.
	failRate float64
}

func (s *stubTarget) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float64() < s.failRate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var order types.SequencedOrder
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.ordersReceived.Add(1)
		zlog.Debug().
			Str("target", s.name).
			Uint64("secnum", order.SequenceNumber).
			Str("symbol", order.Symbol).
			Msg("stub target received order")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/executions", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float64() < s.failRate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.executionsReceived.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// serve starts the stub on an ephemeral port and returns its base URL.
func serve(s *stubTarget) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		zlog.Fatal().Err(err).Str("target", s.name).Msg("failed to listen")
	}
	server := &http.Server{Handler: s.handler()}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Str("target", s.name).Msg("stub server stopped")
		}
	}()
	return "http://" + listener.Addr().String()
}

func main() {
	gatewayURL := flag.String("gateway", "http://localhost:8080", "gateway base URL")
	orderCount := flag.Int("orders", 100, "number of orders to submit")
	fillRatio := flag.Float64("fill-ratio", 0.6, "fraction of orders that receive a fill report")
	engineFail := flag.Float64("engine-fail", 0.1, "engine stub failure rate")
	flag.Parse()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	engine := &stubTarget{name: "matching-engine", failRate: *engineFail}
	publisher := &stubTarget{name: "market-data-publisher"}

	engineURL := serve(engine)
	publisherURL := serve(publisher)

	zlog.Info().
		Str("engine_url", engineURL).
		Str("publisher_url", publisherURL).
		Msg("stub targets running; point the gateway at them")
	zlog.Info().
		Str("example", fmt.Sprintf("ENGINE_URL=%s PUBLISHER_URL=%s", engineURL, publisherURL)).
		Msg("gateway environment")

	httpClient := &http.Client{Timeout: 5 * time.Second}

	waitForGateway(httpClient, *gatewayURL)

	var submitted, acknowledged, filled, rejected atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < *orderCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			quantity := int64(rand.Intn(100) + 1)
			order := types.NewOrderRequest{
				UserID:      int64(rand.Intn(50) + 1),
				TimestampNS: time.Now().UnixNano(),
				Price:       50 + rand.Float64()*200,
				Symbol:      symbols[rand.Intn(len(symbols))],
				Quantity:    quantity,
				OrderType:   pick("LIMIT", "MARKET"),
				TraderType:  pick("RETAIL", "INSTITUTIONAL"),
			}

			submitted.Add(1)
			status, err := post(httpClient, *gatewayURL+"/order", order)
			if err != nil || status != http.StatusCreated {
				zlog.Warn().Err(err).Int("status", status).Msg("submission not acknowledged")
				return
			}
			acknowledged.Add(1)
		}()
	}
	wg.Wait()

	// Give the fan-out pool a moment to drain before sending fills.
	time.Sleep(time.Second)

	fills := int(float64(acknowledged.Load()) * *fillRatio)
	for secnum := 1; secnum <= fills; secnum++ {
		report := types.FillReport{
			SequenceNumber: uint64(secnum),
			Quantity:       int64(rand.Intn(30) + 1),
			ExecutionID:    fmt.Sprintf("SIM-%d-%d", secnum, rand.Int63()),
		}
		status, err := post(httpClient, *gatewayURL+"/order-fill", report)
		switch {
		case err != nil:
			zlog.Warn().Err(err).Msg("fill report failed")
		case status == http.StatusOK:
			filled.Add(1)
		default:
			rejected.Add(1)
			zlog.Debug().Int("status", status).Uint64("secnum", report.SequenceNumber).Msg("fill rejected")
		}
	}

	time.Sleep(time.Second)

	zlog.Info().
		Int64("submitted", submitted.Load()).
		Int64("acknowledged", acknowledged.Load()).
		Int64("fills_accepted", filled.Load()).
		Int64("fills_rejected", rejected.Load()).
		Int64("engine_orders", engine.ordersReceived.Load()).
		Int64("publisher_orders", publisher.ordersReceived.Load()).
		Int64("publisher_executions", publisher.executionsReceived.Load()).
		Msg("simulation complete")
}

// waitForGateway polls the liveness endpoint until the gateway is up,
// giving the operator time to start it against the stub URLs.
func waitForGateway(client *http.Client, baseURL string) {
	deadline := time.Now().Add(2 * time.Minute)
	for {
		resp, err := client.Get(baseURL + "/")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		if time.Now().After(deadline) {
			zlog.Fatal().Str("gateway", baseURL).Msg("gateway did not become available")
		}
		zlog.Info().Str("gateway", baseURL).Msg("waiting for gateway...")
		time.Sleep(2 * time.Second)
	}
}

func post(client *http.Client, url string, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func pick(options ...string) string {
	return options[rand.Intn(len(options))]
}
