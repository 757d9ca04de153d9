// Package errors keeps the server alive through panics. Recovered panics are
// counted, and a burst above the budget reports to the error webhook and
// shuts the process down so the supervisor can restart it cleanly.
package errors

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
)

// Options tune the error budget
type Options struct {
	MaxErrors     int32         // errors tolerated per window
	Window        time.Duration // the counter resets every window
	CheckInterval time.Duration
}

// DefaultOptions allows 15 errors every 5 seconds
func DefaultOptions() Options {
	return Options{MaxErrors: 15, Window: 5 * time.Second, CheckInterval: time.Second}
}

// ErrorHandler counts recovered panics and reports to a webhook
type ErrorHandler struct {
	opts         Options
	errorCount   int32
	webhookURL   string
	shutdownFunc func()
	exit         func(code int)
	client       *http.Client

	stopChan chan struct{}
	stopOnce sync.Once
}

// ReportErrorOptions contains options for reporting an error
type ReportErrorOptions struct {
	Error   string
	Message string
	Where   string // route or command, optional
}

type webhookEmbed struct {
	Author      map[string]string   `json:"author"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []map[string]string `json:"fields,omitempty"`
	Footer      map[string]string   `json:"footer"`
	Timestamp   string              `json:"timestamp"`
}

var (
	handler *ErrorHandler
	once    sync.Once
)

// Init initializes the global error handler
func Init(webhookURL string, shutdownFunc func()) *ErrorHandler {
	once.Do(func() {
		handler = NewErrorHandler(webhookURL, shutdownFunc)
	})
	return handler
}

// Get returns the global error handler instance
func Get() *ErrorHandler {
	return handler
}

// NewErrorHandler creates a handler with DefaultOptions and starts watching
func NewErrorHandler(webhookURL string, shutdownFunc func()) *ErrorHandler {
	return newErrorHandler(webhookURL, shutdownFunc, DefaultOptions())
}

func newErrorHandler(webhookURL string, shutdownFunc func(), opts Options) *ErrorHandler {
	h := &ErrorHandler{
		opts:         opts,
		webhookURL:   webhookURL,
		shutdownFunc: shutdownFunc,
		exit:         os.Exit,
		client:       &http.Client{Timeout: 10 * time.Second},
		stopChan:     make(chan struct{}),
	}
	h.watch()
	return h
}

// watch resets the counter every window and checks it against the budget
func (h *ErrorHandler) watch() {
	go func() {
		reset := time.NewTicker(h.opts.Window)
		check := time.NewTicker(h.opts.CheckInterval)
		defer reset.Stop()
		defer check.Stop()

		for {
			select {
			case <-reset.C:
				atomic.StoreInt32(&h.errorCount, 0)
			case <-check.C:
				if atomic.LoadInt32(&h.errorCount) > h.opts.MaxErrors {
					h.shutdown()
					return
				}
			case <-h.stopChan:
				return
			}
		}
	}()
}

func (h *ErrorHandler) shutdown() {
	start := time.Now()
	logger.Critical(fmt.Sprintf("More than %d errors in %v, shutting down", h.opts.MaxErrors, h.opts.Window), "AntiCrash")

	h.Report(ReportErrorOptions{
		Error:   "Critical Error",
		Message: "Unusual number of errors. Shutting down...",
	})

	if h.shutdownFunc != nil {
		h.shutdownFunc()
	}

	logger.Warn(fmt.Sprintf("Exiting after %v", time.Since(start)), "AntiCrash")
	h.exit(1)
}

// Stop stops the watcher
func (h *ErrorHandler) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// IncrementError increments the error count
func (h *ErrorHandler) IncrementError() {
	count := atomic.AddInt32(&h.errorCount, 1)
	logger.Error(fmt.Sprintf("Error count: %d/%d", count, h.opts.MaxErrors), "AntiCrash")
}

// ErrorCount returns the errors counted in the current window
func (h *ErrorHandler) ErrorCount() int32 {
	return atomic.LoadInt32(&h.errorCount)
}

// HandlePanic counts a recovered panic and logs it with its stack
func (h *ErrorHandler) HandlePanic(recovered interface{}, where string) {
	h.IncrementError()
	logger.Error(fmt.Sprintf("Panic in %s: %v\n%s", where, recovered, debug.Stack()), "AntiCrash")
}

// Report posts an embed to the error webhook. It is a no-op without one.
func (h *ErrorHandler) Report(data ReportErrorOptions) {
	if h.webhookURL == "" {
		return
	}

	embed := webhookEmbed{
		Author:      map[string]string{"name": "Error " + data.Error},
		Description: data.Message,
		Color:       0xFF0000,
		Footer:      map[string]string{"text": "PancyChat Go"},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if data.Where != "" {
		embed.Fields = []map[string]string{{"name": "Where", "value": data.Where}}
	}

	body, err := json.Marshal(map[string]interface{}{"embeds": []webhookEmbed{embed}})
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to marshal error report: %v", err), "AntiCrash")
		return
	}

	resp, err := h.client.Post(h.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send error report: %v", err), "AntiCrash")
		return
	}
	defer resp.Body.Close()

	logger.Debug(fmt.Sprintf("Error report sent, status %d", resp.StatusCode), "AntiCrash")
}

// RecoverMiddleware returns a recovery function for deferred calls
// outside HTTP, such as bot command handlers.
func RecoverMiddleware() func() {
	return func() {
		if r := recover(); r != nil {
			recordPanic(r, "background task")
		}
	}
}

func recordPanic(r interface{}, where string) {
	if handler != nil {
		handler.HandlePanic(r, where)
		return
	}
	logger.Error(fmt.Sprintf("Panic in %s (no handler): %v", where, r), "AntiCrash")
}

// GinRecovery turns handler panics into a 500 response and feeds the
// anti-crash counter.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				recordPanic(r, c.Request.Method+" "+c.FullPath())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":  "error",
					"code":    "internal_error",
					"message": "Internal Server Error",
				})
			}
		}()
		c.Next()
	}
}
