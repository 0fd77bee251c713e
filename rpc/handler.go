package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/engine"
	"github.com/MatrixLabsTech/crystal-caves-zk/indexer"
	"github.com/MatrixLabsTech/crystal-caves-zk/zk"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	eng     *engine.Engine
	journal *indexer.Journal
}

// NewHandler creates an RPC Handler.
func NewHandler(eng *engine.Engine, journal *indexer.Journal) *Handler {
	return &Handler{eng: eng, journal: journal}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	// player operations
	case "admit":
		return h.admit(req)
	case "mineBatch":
		return h.mineBatch(req)
	case "mineBatchAndUnlock":
		return h.mineBatchAndUnlock(req)
	case "claimReward":
		return h.claimReward(req)

	// read-only queries
	case "status":
		return h.status(req)
	case "getUser":
		return h.getUser(req)
	case "isMined":
		return h.isMined(req)
	case "powInfo":
		return h.powInfo(req)
	case "defogLayout":
		return h.defogLayout(req)
	case "journal":
		return h.journalEntries(req)
	case "journalByUser":
		return h.journalByUser(req)

	// operator operations (bearer-token gated at the HTTP layer, capability
	// checked by the engine)
	case "admin_setConfig":
		return h.setConfig(req)
	case "admin_setPaused":
		return h.setPaused(req)
	case "admin_setZKBypass":
		return h.setZKBypass(req)
	case "admin_setVerifyingKeys":
		return h.setVerifyingKeys(req)
	case "admin_deposit":
		return h.deposit(req)
	case "admin_withdraw":
		return h.withdraw(req)
	case "admin_emergencyWithdraw":
		return h.emergencyWithdraw(req)
	case "admin_grantRole":
		return h.grantRole(req)
	case "admin_revokeRole":
		return h.revokeRole(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// ---- player operations ----

func (h *Handler) admit(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
		engine.AdmitRequest
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Caller == "" {
		return errResponse(req.ID, CodeInvalidParams, "caller is required")
	}
	if err := h.eng.Admit(params.Caller, &params.AdmitRequest); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"admitted": true})
}

func (h *Handler) mineBatch(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
		engine.MineRequest
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Caller == "" {
		return errResponse(req.ID, CodeInvalidParams, "caller is required")
	}
	if err := h.eng.MineBatch(params.Caller, &params.MineRequest); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"mined": len(params.Claims)})
}

func (h *Handler) mineBatchAndUnlock(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
		engine.UnlockRequest
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Caller == "" {
		return errResponse(req.ID, CodeInvalidParams, "caller is required")
	}
	if err := h.eng.MineBatchAndUnlock(params.Caller, &params.UnlockRequest); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"mined": len(params.Mine.Claims), "unlocked": true})
}

func (h *Handler) claimReward(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.Caller == "" {
		return errResponse(req.ID, CodeInvalidParams, "caller is required")
	}
	amount, err := h.eng.ClaimReward(params.Caller)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"claimed": amount})
}

// ---- read-only queries ----

func (h *Handler) status(req Request) Response {
	st, err := h.eng.Status()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, st)
}

func (h *Handler) getUser(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	user, err := h.eng.User(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, user)
}

func (h *Handler) isMined(req Request) Response {
	var params struct {
		Address string `json:"address"`
		Block   string `json:"block"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" || params.Block == "" {
		return errResponse(req.ID, CodeInvalidParams, "address and block are required")
	}
	mined, err := h.eng.IsMined(params.Address, params.Block)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"mined": mined})
}

func (h *Handler) powInfo(req Request) Response {
	var params struct {
		Address string         `json:"address"`
		Type    core.BlockType `json:"type"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	info, err := h.eng.Pow(params.Address, params.Type)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, info)
}

func (h *Handler) defogLayout(req Request) Response {
	bands, err := h.eng.DefogLayout()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, bands)
}

func (h *Handler) journalEntries(req Request) Response {
	var params struct {
		From  uint64 `json:"from"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Limit <= 0 || params.Limit > 1000 {
		params.Limit = 100
	}
	entries, err := h.journal.Entries(params.From, params.Limit)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, entries)
}

func (h *Handler) journalByUser(req Request) Response {
	var params struct {
		User string `json:"user"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.User == "" {
		return errResponse(req.ID, CodeInvalidParams, "user is required")
	}
	seqs, err := h.journal.SeqsByUser(params.User)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, seqs)
}

// ---- operator operations ----

func (h *Handler) setConfig(req Request) Response {
	var params struct {
		Caller string          `json:"caller"`
		Config core.GameConfig `json:"config"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.eng.Initialize(params.Caller, &params.Config); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"ok": true})
}

func (h *Handler) setPaused(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
		Paused bool   `json:"paused"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.eng.SetPaused(params.Caller, params.Paused); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"paused": params.Paused})
}

func (h *Handler) setZKBypass(req Request) Response {
	var params struct {
		Caller   string `json:"caller"`
		Bypassed bool   `json:"bypassed"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.eng.SetZKBypass(params.Caller, params.Bypassed); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"bypassed": params.Bypassed})
}

func (h *Handler) setVerifyingKeys(req Request) Response {
	var params struct {
		Caller string               `json:"caller"`
		Mine   *zk.VerifyingKeyData `json:"mine"`
		Unlock *zk.VerifyingKeyData `json:"unlock"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	var mine, unlock *zk.VerifyingKey
	var err error
	if params.Mine != nil {
		if mine, err = params.Mine.Decode(); err != nil {
			return errResponse(req.ID, CodeInvalidParams, "mine key: "+err.Error())
		}
	}
	if params.Unlock != nil {
		if unlock, err = params.Unlock.Decode(); err != nil {
			return errResponse(req.ID, CodeInvalidParams, "unlock key: "+err.Error())
		}
	}
	if err := h.eng.SetVerifyingKeys(params.Caller, mine, unlock); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"ok": true})
}

func (h *Handler) deposit(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.eng.Deposit(params.Caller, params.Amount); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"ok": true})
}

func (h *Handler) withdraw(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.eng.Withdraw(params.Caller, params.Amount); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"ok": true})
}

func (h *Handler) emergencyWithdraw(req Request) Response {
	var params struct {
		Caller string `json:"caller"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.eng.EmergencyWithdraw(params.Caller); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"ok": true})
}

func (h *Handler) grantRole(req Request) Response {
	return h.changeRole(req, true)
}

func (h *Handler) revokeRole(req Request) Response {
	return h.changeRole(req, false)
}

func (h *Handler) changeRole(req Request, grant bool) Response {
	var params struct {
		Caller  string      `json:"caller"`
		Address string      `json:"address"`
		Role    engine.Role `json:"role"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.eng.Access().Require(params.Caller, engine.RoleOperator); err != nil {
		return errResponse(req.ID, CodeUnauthorized, err.Error())
	}
	if grant {
		h.eng.Access().Grant(params.Address, params.Role)
	} else {
		h.eng.Access().Revoke(params.Address, params.Role)
	}
	return okResponse(req.ID, map[string]any{"ok": true})
}
