package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assetnote/n1qlback/pkg/corpus"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/lucasjones/reggen"
	"github.com/valyala/fasthttp"
)

var (
	requestCount count32
	errorCount   count32

	port       int
	latency    time.Duration
	rowCount   int
	failRatio  float64
	failStatus string
	valueRegex string

	prepared sync.Map

	valuesMu sync.Mutex
	values   *reggen.Generator
)

// generateValue serialises access to the generator, which is not safe for concurrent use
func generateValue() string {
	valuesMu.Lock()
	defer valuesMu.Unlock()
	return values.Generate(16)
}

type count32 struct {
	val uint32
}

func (c *count32) increment() {
	atomic.AddUint32(&c.val, 1)
}

func (c *count32) get() uint32 {
	return atomic.LoadUint32(&c.val)
}

func PreRequest() {
	if latency > 0 {
		time.Sleep(latency)
	}
	requestCount.increment()
}

// NodeServices serves a single node cluster map advertising the query service on our own port
func NodeServices(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	fmt.Fprintf(ctx, `{"rev":1,"nodesExt":[{"services":{"mgmt":%d,"n1ql":%d},"thisNode":true}],"clusterCapabilitiesVer":[1,0]}`, port, port)
}

func writeErrors(ctx *fasthttp.RequestCtx, statusCode int, status string, code int, msg string) {
	errorCount.increment()
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	b := []byte(`{"requestID":"`)
	b = append(b, uuid.New().String()...)
	b = append(b, `","errors":[{"code":`...)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, `,"msg":`...)
	b = strconv.AppendQuote(b, msg)
	b = append(b, `}],"status":`...)
	b = strconv.AppendQuote(b, status)
	b = append(b, '}')
	ctx.Write(b)
}

// QueryService emulates /query/service. PREPARE statements return a fresh name, prepared executions
// must use a known name, everything else returns rowCount generated rows
func QueryService(ctx *fasthttp.RequestCtx) {
	PreRequest()

	obj, err := corpus.ParseObject(ctx.PostBody())
	if err != nil {
		writeErrors(ctx, fasthttp.StatusBadRequest, "fatal", 1050, "invalid request body: "+err.Error())
		return
	}

	if failRatio > 0 && rand.Float64() < failRatio {
		writeErrors(ctx, fasthttp.StatusServiceUnavailable, failStatus, 5000, "simulated failure")
		return
	}

	b := []byte(`{"requestID":"`)
	b = append(b, uuid.New().String()...)
	b = append(b, '"')
	if id, ok := obj.Get("client_context_id"); ok {
		b = append(b, `,"clientContextID":`...)
		b = append(b, id...)
	}
	b = append(b, `,"results":[`...)

	var (
		stmt, hasStmt     = obj.GetString("statement")
		name, hasPrepared = obj.GetString("prepared")
		results           = 0
	)
	switch {
	case hasStmt && len(stmt) > 8 && bytes.EqualFold([]byte(stmt[:8]), []byte("PREPARE ")):
		name := uuid.New().String()
		prepared.Store(name, stmt[8:])
		b = append(b, `{"name":"`...)
		b = append(b, name...)
		b = append(b, `","statement":`...)
		b = strconv.AppendQuote(b, stmt[8:])
		b = append(b, '}')
		results = 1
	case !hasStmt && !hasPrepared:
		writeErrors(ctx, fasthttp.StatusBadRequest, "fatal", 1050, "No statement or prepared value")
		return
	default:
		if hasPrepared {
			if _, ok := prepared.Load(name); !ok {
				writeErrors(ctx, fasthttp.StatusNotFound, "errors", 4040, "No such prepared statement: "+name)
				return
			}
		}
		for i := 0; i < rowCount; i++ {
			if i > 0 {
				b = append(b, ',')
			}
			b = append(b, `{"id":`...)
			b = strconv.AppendInt(b, int64(i), 10)
			b = append(b, `,"value":`...)
			b = strconv.AppendQuote(b, generateValue())
			b = append(b, '}')
		}
		results = rowCount
	}
	b = append(b, `],"status":"success","metrics":{"resultCount":`...)
	b = strconv.AppendInt(b, int64(results), 10)
	b = append(b, `}}`...)

	ctx.SetContentType("application/json")
	ctx.Write(b)
}

func StatsFunc(end <-chan bool) {
	// rolling average
	lastRequest := time.Now()
	lastRequestCount := requestCount.get()
	rpsPeak := float64(0)
	for {
		select {
		case <-end:
			fmt.Println("\nTerminating.")
			return
		default:
			timeDiff := time.Since(lastRequest).Seconds()
			curRequestCount := requestCount.get()
			requestCountDiff := curRequestCount - lastRequestCount
			rps := float64(requestCountDiff) / timeDiff
			if rps > rpsPeak {
				rpsPeak = rps
			}

			fmt.Printf("Total Requests: %d. Errors: %d. RPS: %f. Peak: %f\t\t\t\t\r", curRequestCount, errorCount.get(), rps, rpsPeak)
			lastRequest = time.Now()
			lastRequestCount = curRequestCount
			time.Sleep(1 * time.Second)
		}
	}
}

func main() {
	flag.IntVar(&port, "p", 8091, "port to serve the cluster map and the query service on")
	flag.DurationVar(&latency, "latency", 0, "delay before answering each query")
	flag.IntVar(&rowCount, "rows", 1, "rows returned for each query")
	flag.Float64Var(&failRatio, "fail", 0, "ratio of queries to fail, between 0 and 1")
	flag.StringVar(&failStatus, "fail-status", "errors", "status reported on failed queries")
	flag.StringVar(&valueRegex, "value-regex", "[a-z]{4,12}", "regex used to generate the value column of each row")
	flag.Parse()

	var err error
	values, err = reggen.NewGenerator(valueRegex)
	if err != nil {
		log.Fatal().Err(err).Str("regex", valueRegex).Msg("invalid value regex")
	}

	r := router.New()
	r.GET("/pools/default/nodeServices", NodeServices)
	r.POST("/query/service", QueryService)

	statsFunc := make(chan bool, 0)
	go StatsFunc(statsFunc)

	Host := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", Host).Msg("starting query service")
	if err := fasthttp.ListenAndServe(Host, r.Handler); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	statsFunc <- true
	close(statsFunc)
}
