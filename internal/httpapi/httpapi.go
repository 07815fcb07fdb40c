// Package httpapi exposes the ledger engine over JSON HTTP. Routing stays on
// net/http's ServeMux; handlers translate engine sentinels into status codes
// and never reach past the engine into the store.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/ledger"
	"loungeerp/backend/internal/store"
)

type API struct {
	engine        *ledger.Engine
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(engine *ledger.Engine, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		engine:        engine,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "clerk", "admin"))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, "clerk", "admin"))
	mux.HandleFunc("/api/v1/salesmen", a.requireAuth(a.handleSalesmen, "clerk", "admin"))
	mux.HandleFunc("/api/v1/salesmen/", a.requireAuth(a.handleSalesmanActions, "clerk", "admin"))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, "clerk", "admin"))
	mux.HandleFunc("/api/v1/restocks", a.requireAuth(a.handleRestocks, "clerk", "admin"))
	mux.HandleFunc("/api/v1/write-offs", a.requireAuth(a.handleWriteOffs, "clerk", "admin"))
	mux.HandleFunc("/api/v1/credit-payments", a.requireAuth(a.handleCreditPayments, "clerk", "admin"))
	mux.HandleFunc("/api/v1/open-stock", a.requireAuth(a.handleOpenStock, "clerk", "admin"))

	mux.HandleFunc("/api/v1/transactions", a.requireAuth(a.handleTransactions, "clerk", "admin"))
	mux.HandleFunc("/api/v1/transactions/", a.requireAuth(a.handleTransactionActions, "clerk", "admin"))

	mux.HandleFunc("/api/v1/reports/stock", a.requireAuth(a.handleStockReport, "clerk", "admin"))
	mux.HandleFunc("/api/v1/reports/profit", a.requireAuth(a.handleProfitReport, "clerk", "admin"))
	mux.HandleFunc("/api/v1/reports/debts", a.requireAuth(a.handleDebtsReport, "clerk", "admin"))

	mux.HandleFunc("/api/v1/archive", a.requireAuth(a.handleArchive, "admin"))
	mux.HandleFunc("/api/v1/users/clerks", a.requireAuth(a.handleClerks, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(ledger.WithActor(r.Context(), actor)))
	}
}

func actorIsAdmin(r *http.Request) bool {
	actor, ok := ledger.ActorFromContext(r.Context())
	return ok && actor.Role == "admin"
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeInactive := parseBoolParam(r.URL.Query().Get("include_inactive"))
		products, err := a.engine.ListProducts(r.Context(), includeInactive)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.engine.AddProduct(r.Context(), req)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/products/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	if strings.HasSuffix(tail, "/active") {
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/active"), "/")
		var req domain.SetActiveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.engine.SetProductActive(r.Context(), id, req.Active); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	product, err := a.engine.GetProduct(r.Context(), tail)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleSalesmen(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeInactive := parseBoolParam(r.URL.Query().Get("include_inactive"))
		salesmen, err := a.engine.ListSalesmen(r.Context(), includeInactive)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"salesmen": salesmen})
	case http.MethodPost:
		var req domain.SalesmanCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		salesman, err := a.engine.AddSalesman(r.Context(), req)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"salesman": salesman})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSalesmanActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/salesmen/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("salesman id required"))
		return
	}

	if strings.HasSuffix(tail, "/active") {
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/active"), "/")
		var req domain.SetActiveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.engine.SetSalesmanActive(r.Context(), id, req.Active); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	salesman, err := a.engine.GetSalesman(r.Context(), tail)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"salesman": salesman})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.engine.RecordSale(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

func (a *API) handleRestocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.engine.RecordRestock(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

func (a *API) handleWriteOffs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.WriteOffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.engine.RecordWriteOff(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

func (a *API) handleCreditPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CreditPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.engine.RecordCreditPayment(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

func (a *API) handleOpenStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !actorIsAdmin(r) {
		writeError(w, http.StatusForbidden, errors.New("forbidden role"))
		return
	}

	var req domain.OpenStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.engine.RecordOpenStock(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	filter := domain.TransactionFilter{
		ProductID: strings.TrimSpace(r.URL.Query().Get("product_id")),
		Type:      domain.TransactionType(strings.TrimSpace(r.URL.Query().Get("type"))),
		Limit:     parsePositiveLimit(r.URL.Query().Get("limit"), 0, 1000),
	}

	rows, err := a.engine.ListTransactions(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": rows})
}

func (a *API) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/transactions/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	if strings.HasSuffix(tail, "/void") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		// Reads are open to clerks; reversals are an admin action.
		if !actorIsAdmin(r) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/void"), "/")
		if id == "" {
			writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
			return
		}

		var req domain.VoidRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.LinkedTransactionID = id

		rows, err := a.engine.VoidTransaction(r.Context(), req)
		if err != nil {
			// A failed replacement after a persisted void still reports the
			// void so the client knows what landed.
			if len(rows) > 0 {
				writeJSON(w, statusForEngineError(err), map[string]any{
					"transactions": rows,
					"error":        err.Error(),
				})
				return
			}
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"transactions": rows})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	tx, err := a.engine.GetTransaction(r.Context(), tail)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleStockReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	if productID := strings.TrimSpace(r.URL.Query().Get("product_id")); productID != "" {
		quantity, err := a.engine.ComputeStock(r.Context(), productID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"product_id": productID,
			"quantity":   quantity,
		})
		return
	}

	levels, err := a.engine.StockReport(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": levels})
}

func (a *API) handleProfitReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	summary, err := a.engine.ComputeProfit(r.Context(), strings.TrimSpace(r.URL.Query().Get("product_id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleDebtsReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	debts, err := a.engine.OutstandingDebts(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debts": debts})
}

func (a *API) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ArchiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	summary, err := a.engine.ArchivePeriod(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleClerks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"clerks": a.auth.ListClerks()})
	case http.MethodPost:
		var req domain.ClerkCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		clerk, err := a.auth.CreateClerk(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"clerk": clerk})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func pathTail(path string, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
}

func statusForEngineError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownProduct),
		errors.Is(err, ledger.ErrLinkedTransactionNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyVoided),
		errors.Is(err, store.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest
	case ledger.IsBusinessError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusForEngineError(err), err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parseBoolParam(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "1" || strings.EqualFold(raw, "true")
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx messages stay generic so store internals never leak to clients.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
