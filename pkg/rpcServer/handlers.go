package rpcServer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (rpc *RpcServer) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (rpc *RpcServer) writeError(w http.ResponseWriter, statusCode int, message string) {
	rpc.writeJSON(w, statusCode, map[string]string{"error": message})
}

func (rpc *RpcServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	block, err := rpc.supplyService.GetLatestConfirmedBlock(r.Context())
	if err != nil {
		rpc.writeError(w, http.StatusServiceUnavailable, "no blocks indexed yet")
		return
	}
	rpc.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"latestBlock": block.Number,
	})
}

func (rpc *RpcServer) ListCirculatingSupplies(w http.ResponseWriter, r *http.Request) {
	supplies, err := rpc.supplyService.ListCirculatingSupplies(r.Context())
	if err != nil {
		rpc.Logger.Sugar().Errorw("Failed to list circulating supplies", zap.Error(err))
		rpc.writeError(w, http.StatusInternalServerError, "failed to list circulating supplies")
		return
	}
	rpc.writeJSON(w, http.StatusOK, supplies)
}

func (rpc *RpcServer) GetCirculatingSupply(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	supply, err := rpc.supplyService.GetCirculatingSupply(r.Context(), symbol)
	if err != nil {
		rpc.Logger.Sugar().Errorw("Failed to get circulating supply",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		rpc.writeError(w, http.StatusInternalServerError, "failed to get circulating supply")
		return
	}
	if supply == nil {
		rpc.writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	rpc.writeJSON(w, http.StatusOK, supply)
}

func (rpc *RpcServer) ListPoolVolumes(w http.ResponseWriter, r *http.Request) {
	volumes, err := rpc.dexService.ListPoolVolumes(r.Context())
	if err != nil {
		rpc.Logger.Sugar().Errorw("Failed to list pool volumes", zap.Error(err))
		rpc.writeError(w, http.StatusInternalServerError, "failed to list pool volumes")
		return
	}
	rpc.writeJSON(w, http.StatusOK, volumes)
}

// GetTradingVolume accepts optional from/to query parameters in RFC 3339;
// absent bounds default to the trailing week.
func (rpc *RpcServer) GetTradingVolume(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var from, to time.Time
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			rpc.writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			rpc.writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
	}

	volume, err := rpc.dexService.GetTradingVolume(r.Context(), vars["currencyA"], vars["currencyB"], from, to)
	if err != nil {
		rpc.Logger.Sugar().Errorw("Failed to get trading volume",
			zap.String("currencyA", vars["currencyA"]),
			zap.String("currencyB", vars["currencyB"]),
			zap.Error(err),
		)
		rpc.writeError(w, http.StatusInternalServerError, "failed to get trading volume")
		return
	}
	rpc.writeJSON(w, http.StatusOK, volume)
}

func (rpc *RpcServer) GetAccountLoanSummary(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]
	symbol := r.URL.Query().Get("symbol")

	summaries, err := rpc.loanService.GetAccountLoanSummary(r.Context(), accountID, symbol)
	if err != nil {
		rpc.Logger.Sugar().Errorw("Failed to get account loan summary",
			zap.String("accountId", accountID),
			zap.Error(err),
		)
		rpc.writeError(w, http.StatusInternalServerError, "failed to get account loan summary")
		return
	}
	rpc.writeJSON(w, http.StatusOK, summaries)
}
