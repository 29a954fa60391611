package rpc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/ipfs/go-cid"
)

// Client is a ports.Network backed by a remote JSON-RPC server.
type Client struct {
	Internal struct {
		Login           func(ctx context.Context, agent string, email string) error
		Claim           func(ctx context.Context, agent string) ([]domain.Delegation, error)
		PlanGet         func(ctx context.Context, agent string, account string) (domain.Plan, error)
		CreateSpace     func(ctx context.Context, req ports.CreateSpaceRequest) (ports.CreateSpaceResult, error)
		UploadFile      func(ctx context.Context, inv ports.Invocation, file ports.UploadFile) (cid.Cid, error)
		UploadDirectory func(ctx context.Context, inv ports.Invocation, files []ports.UploadFile) (cid.Cid, error)
		UploadList      func(ctx context.Context, inv ports.Invocation, cursor string, size int) (ports.UploadPage, error)
		UploadRemove    func(ctx context.Context, inv ports.Invocation, root cid.Cid, shards bool) error
	}
}

var _ ports.Network = (*Client)(nil)

// NewClient connects to the network namespace at endpoint, an http:// or
// ws:// URL ending in DefaultPath.
func NewClient(ctx context.Context, endpoint string, header http.Header) (*Client, jsonrpc.ClientCloser, error) {
	var client Client
	closer, err := jsonrpc.NewMergeClient(ctx, endpoint, NetworkNamespace, []interface{}{&client.Internal}, header, jsonrpc.WithErrors(Errors))
	if err != nil {
		return nil, nil, fmt.Errorf("dial network %s: %w", endpoint, err)
	}

	return &client, closer, nil
}

func (c *Client) Login(ctx context.Context, agent string, email string) error {
	return fromRemote(c.Internal.Login(ctx, agent, email))
}

func (c *Client) Claim(ctx context.Context, agent string) ([]domain.Delegation, error) {
	delegations, err := c.Internal.Claim(ctx, agent)
	return delegations, fromRemote(err)
}

func (c *Client) PlanGet(ctx context.Context, agent string, account string) (domain.Plan, error) {
	plan, err := c.Internal.PlanGet(ctx, agent, account)
	return plan, fromRemote(err)
}

func (c *Client) CreateSpace(ctx context.Context, req ports.CreateSpaceRequest) (ports.CreateSpaceResult, error) {
	result, err := c.Internal.CreateSpace(ctx, req)
	return result, fromRemote(err)
}

func (c *Client) UploadFile(ctx context.Context, inv ports.Invocation, file ports.UploadFile) (cid.Cid, error) {
	root, err := c.Internal.UploadFile(ctx, inv, file)
	return root, fromRemote(err)
}

func (c *Client) UploadDirectory(ctx context.Context, inv ports.Invocation, files []ports.UploadFile) (cid.Cid, error) {
	root, err := c.Internal.UploadDirectory(ctx, inv, files)
	return root, fromRemote(err)
}

func (c *Client) UploadList(ctx context.Context, inv ports.Invocation, cursor string, size int) (ports.UploadPage, error) {
	page, err := c.Internal.UploadList(ctx, inv, cursor, size)
	return page, fromRemote(err)
}

func (c *Client) UploadRemove(ctx context.Context, inv ports.Invocation, root cid.Cid, shards bool) error {
	return fromRemote(c.Internal.UploadRemove(ctx, inv, root, shards))
}

// ConsoleClient drives the console namespace of a dev network.
type ConsoleClient struct {
	Internal struct {
		RegisterAccount    func(ctx context.Context, email string, product string) (string, error)
		SetPlan            func(ctx context.Context, email string, product string) error
		CreateConsoleSpace func(ctx context.Context, email string, name string, abilities []domain.Ability) (string, error)
	}
}

var _ Console = (*ConsoleClient)(nil)

func NewConsoleClient(ctx context.Context, endpoint string, header http.Header) (*ConsoleClient, jsonrpc.ClientCloser, error) {
	var client ConsoleClient
	closer, err := jsonrpc.NewMergeClient(ctx, endpoint, ConsoleNamespace, []interface{}{&client.Internal}, header, jsonrpc.WithErrors(Errors))
	if err != nil {
		return nil, nil, fmt.Errorf("dial console %s: %w", endpoint, err)
	}

	return &client, closer, nil
}

func (c *ConsoleClient) RegisterAccount(ctx context.Context, email string, product string) (string, error) {
	did, err := c.Internal.RegisterAccount(ctx, email, product)
	return did, fromRemote(err)
}

func (c *ConsoleClient) SetPlan(ctx context.Context, email string, product string) error {
	return fromRemote(c.Internal.SetPlan(ctx, email, product))
}

func (c *ConsoleClient) CreateConsoleSpace(ctx context.Context, email string, name string, abilities ...domain.Ability) (string, error) {
	did, err := c.Internal.CreateConsoleSpace(ctx, email, name, abilities)
	return did, fromRemote(err)
}
