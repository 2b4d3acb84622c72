package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	msgMethodRequired   = "Method is required"
	msgInvalidBody      = "Invalid request body"
	msgInvalidAddress   = "Invalid address"
	msgInvalidTxid      = "Invalid transaction id"
	msgInvalidDirection = "direction must be 1 or -1"

	maxAPIBodyBytes = 64 << 10
)

// dashboardData is the one-shot payload behind /api/dashboard-data: one
// envelope per wallet call.
type dashboardData struct {
	Info               apiResult `json:"info"`
	WalletInfo         apiResult `json:"wallet_info"`
	StakingInfo        apiResult `json:"staking_info"`
	NetworkInfo        apiResult `json:"network_info"`
	Balance            apiResult `json:"balance"`
	UnconfirmedBalance apiResult `json:"unconfirmed_balance"`
	ConnectionCount    apiResult `json:"connection_count"`
	SuperblockAge      apiResult `json:"superblock_age"`
}

func (d dashboardData) results() []apiResult {
	return []apiResult{
		d.Info, d.WalletInfo, d.StakingInfo, d.NetworkInfo,
		d.Balance, d.UnconfirmedBalance, d.ConnectionCount, d.SuperblockAge,
	}
}

func fetchDashboardData(ctx context.Context, rpc *RPCClient) dashboardData {
	r := fetchAll(ctx,
		rpc.GetInfo,
		rpc.GetWalletInfo,
		rpc.GetStakingInfo,
		rpc.GetNetworkInfo,
		rpc.GetBalance,
		rpc.GetUnconfirmedBalance,
		rpc.GetConnectionCount,
		rpc.SuperblockAge,
	)
	return dashboardData{
		Info:               r[0],
		WalletInfo:         r[1],
		StakingInfo:        r[2],
		NetworkInfo:        r[3],
		Balance:            r[4],
		UnconfirmedBalance: r[5],
		ConnectionCount:    r[6],
		SuperblockAge:      r[7],
	}
}

// isValidAddress reports whether addr is a base58check string carrying a
// 20-byte hash.
func isValidAddress(addr string) bool {
	if addr == "" || len(addr) > 64 {
		return false
	}
	payload, _, err := base58.CheckDecode(addr)
	return err == nil && len(payload) == 20
}

func isValidTxid(txid string) bool {
	if len(txid) != chainhash.MaxHashStringSize {
		return false
	}
	_, err := chainhash.NewHashFromStr(txid)
	return err == nil
}

// parseTransactionCount reads ?count=, falling back to the default for
// missing or malformed values and clamping to the allowed range.
func parseTransactionCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultTransactionCount
	}
	if n < 1 {
		return 1
	}
	if n > maxTransactionCount {
		return maxTransactionCount
	}
	return n
}

// apiRoute adapts a single wallet call into a cached GET handler.
func (s *WebServer) apiRoute(call func(ctx context.Context, r *http.Request) apiResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveCachedJSON(w, r, func(ctx context.Context) (any, []apiResult) {
			ctx, cancel := s.rpcContext(ctx)
			defer cancel()
			res := call(ctx, r)
			return res, []apiResult{res}
		})
	}
}

func simpleCall(fn rpcCall) func(context.Context, *http.Request) apiResult {
	return func(ctx context.Context, _ *http.Request) apiResult {
		return fn(ctx)
	}
}

func (s *WebServer) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, r, func(ctx context.Context) (any, []apiResult) {
		ctx, cancel := s.rpcContext(ctx)
		defer cancel()
		data := fetchDashboardData(ctx, s.rpc)
		return data, data.results()
	})
}

func (s *WebServer) handleAPITransactions(ctx context.Context, r *http.Request) apiResult {
	return s.rpc.ListTransactions(ctx, parseTransactionCount(r.URL.Query().Get("count")))
}

func (s *WebServer) handleAPITransaction(w http.ResponseWriter, r *http.Request) {
	txid := strings.ToLower(strings.TrimSpace(r.PathValue("txid")))
	if !isValidTxid(txid) {
		writeJSON(w, http.StatusBadRequest, errorResult(msgInvalidTxid))
		return
	}
	s.apiRoute(func(ctx context.Context, _ *http.Request) apiResult {
		return s.rpc.GetTransaction(ctx, txid)
	})(w, r)
}

func (s *WebServer) handleAPIPoll(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResult("Poll id is required"))
		return
	}
	s.apiRoute(func(ctx context.Context, _ *http.Request) apiResult {
		return s.rpc.GetPollResults(ctx, id)
	})(w, r)
}

func (s *WebServer) handleAPIAddressUTXOs(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.PathValue("addr"))
	if !isValidAddress(addr) {
		writeJSON(w, http.StatusBadRequest, errorResult(msgInvalidAddress))
		return
	}
	s.apiRoute(func(ctx context.Context, _ *http.Request) apiResult {
		return s.rpc.ListUnspent(ctx, addr)
	})(w, r)
}

func (s *WebServer) handleAPIAddressReceived(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.PathValue("addr"))
	if !isValidAddress(addr) {
		writeJSON(w, http.StatusBadRequest, errorResult(msgInvalidAddress))
		return
	}
	s.apiRoute(func(ctx context.Context, _ *http.Request) apiResult {
		return s.rpc.GetReceivedByAddress(ctx, addr)
	})(w, r)
}

type executeRPCRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func decodeJSONBody(r *http.Request, out interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAPIBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return errors.New("empty body")
	}
	return fastJSONUnmarshal(data, out)
}

func (s *WebServer) handleExecuteRPC(w http.ResponseWriter, r *http.Request) {
	var req executeRPCRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResult(msgInvalidBody))
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		writeJSON(w, http.StatusBadRequest, errorResult(msgMethodRequired))
		return
	}
	params, err := parseExecuteParams(req.Params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResult(err.Error()))
		return
	}
	_, res := s.executeConsole(r, consoleLine(method, params), method, params)
	s.tracker.updateConnectionStatus(statusFromResults(res))
	writeJSON(w, http.StatusOK, res)
}

func (s *WebServer) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	pref := s.prefs.LoadRefresh(r.Context(), currentUser(r))
	data, err := fastJSONMarshal(map[string]refreshPreference{preferenceKeyAutoRefresh: pref})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResult("Internal server error"))
		return
	}
	writeJSON(w, http.StatusOK, okResult(data))
}

func (s *WebServer) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var body storedRefreshPreference
	if err := decodeJSONBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResult(msgInvalidBody))
		return
	}
	pref := defaultRefreshPreference(s.Config().DefaultRefreshIntervalMS)
	if body.Enabled != nil {
		pref.Enabled = *body.Enabled
	}
	if body.Interval != nil {
		pref.Interval = *body.Interval
	}
	if err := s.prefs.SaveRefresh(r.Context(), currentUser(r), pref); err != nil {
		if errors.Is(err, errRefreshIntervalTooShort) {
			writeJSON(w, http.StatusBadRequest, errorResult(err.Error()))
			return
		}
		logger.Error("save preferences", "user", currentUser(r), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResult("Internal server error"))
		return
	}
	data, _ := fastJSONMarshal(map[string]refreshPreference{preferenceKeyAutoRefresh: pref})
	writeJSON(w, http.StatusOK, okResult(data))
}

func (s *WebServer) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	data, err := fastJSONMarshal(s.tracker.Snapshot())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResult("Internal server error"))
		return
	}
	writeJSON(w, http.StatusOK, okResult(data))
}

type historyStep struct {
	Command string `json:"command"`
	Changed bool   `json:"changed"`
}

func (s *WebServer) handleConsoleHistory(w http.ResponseWriter, r *http.Request) {
	direction, err := strconv.Atoi(r.URL.Query().Get("direction"))
	if err != nil || (direction != 1 && direction != -1) {
		writeJSON(w, http.StatusBadRequest, errorResult(msgInvalidDirection))
		return
	}
	cmd, changed := s.consoleFor(r).navigate(direction)
	data, _ := fastJSONMarshal(historyStep{Command: cmd, Changed: changed})
	writeJSON(w, http.StatusOK, okResult(data))
}
