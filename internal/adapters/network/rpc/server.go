// Package rpc carries the storage network and its console over JSON-RPC,
// so `sp` can talk to a network served by `sp dev serve`.
package rpc

import (
	"context"
	"net/http"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("rpc")

const (
	NetworkNamespace = "Storacha"
	ConsoleNamespace = "Console"
	DefaultPath      = "/rpc/v0"
)

// Console is the account administration surface of a network.
type Console interface {
	RegisterAccount(ctx context.Context, email string, product string) (string, error)
	SetPlan(ctx context.Context, email string, product string) error
	CreateConsoleSpace(ctx context.Context, email string, name string, abilities ...domain.Ability) (string, error)
}

type networkHandler struct {
	network ports.Network
}

func (h *networkHandler) Login(ctx context.Context, agent string, email string) error {
	return toRemote(h.network.Login(ctx, agent, email))
}

func (h *networkHandler) Claim(ctx context.Context, agent string) ([]domain.Delegation, error) {
	delegations, err := h.network.Claim(ctx, agent)
	return delegations, toRemote(err)
}

func (h *networkHandler) PlanGet(ctx context.Context, agent string, account string) (domain.Plan, error) {
	plan, err := h.network.PlanGet(ctx, agent, account)
	return plan, toRemote(err)
}

func (h *networkHandler) CreateSpace(ctx context.Context, req ports.CreateSpaceRequest) (ports.CreateSpaceResult, error) {
	result, err := h.network.CreateSpace(ctx, req)
	return result, toRemote(err)
}

func (h *networkHandler) UploadFile(ctx context.Context, inv ports.Invocation, file ports.UploadFile) (cid.Cid, error) {
	root, err := h.network.UploadFile(ctx, inv, file)
	return root, toRemote(err)
}

func (h *networkHandler) UploadDirectory(ctx context.Context, inv ports.Invocation, files []ports.UploadFile) (cid.Cid, error) {
	root, err := h.network.UploadDirectory(ctx, inv, files)
	return root, toRemote(err)
}

func (h *networkHandler) UploadList(ctx context.Context, inv ports.Invocation, cursor string, size int) (ports.UploadPage, error) {
	page, err := h.network.UploadList(ctx, inv, cursor, size)
	return page, toRemote(err)
}

func (h *networkHandler) UploadRemove(ctx context.Context, inv ports.Invocation, root cid.Cid, shards bool) error {
	return toRemote(h.network.UploadRemove(ctx, inv, root, shards))
}

type consoleHandler struct {
	console Console
}

func (h *consoleHandler) RegisterAccount(ctx context.Context, email string, product string) (string, error) {
	did, err := h.console.RegisterAccount(ctx, email, product)
	return did, toRemote(err)
}

func (h *consoleHandler) SetPlan(ctx context.Context, email string, product string) error {
	return toRemote(h.console.SetPlan(ctx, email, product))
}

func (h *consoleHandler) CreateConsoleSpace(ctx context.Context, email string, name string, abilities []domain.Ability) (string, error) {
	did, err := h.console.CreateConsoleSpace(ctx, email, name, abilities...)
	return did, toRemote(err)
}

// NewServer registers network, and console when it is not nil, on one
// JSON-RPC server.
func NewServer(network ports.Network, console Console) *jsonrpc.RPCServer {
	server := jsonrpc.NewServer(jsonrpc.WithServerErrors(Errors))
	server.Register(NetworkNamespace, &networkHandler{network: network})
	if console != nil {
		server.Register(ConsoleNamespace, &consoleHandler{console: console})
	}

	return server
}

// NewHandler mounts the JSON-RPC server at DefaultPath. Every other path
// goes to fallback, or 404 when fallback is nil.
func NewHandler(network ports.Network, console Console, fallback http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(DefaultPath, NewServer(network, console))
	if fallback != nil {
		mux.Handle("/", fallback)
	}
	log.Debugw("rpc handler ready", "path", DefaultPath, "console", console != nil)

	return mux
}
