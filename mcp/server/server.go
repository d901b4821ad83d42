// Package server exposes the settlement engine over MCP (Model Context
// Protocol) so agent runtimes can settle signed orders as tool calls.
// Orders travel as base64 envelopes produced by the encoding package.
package server

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	dcvx "github.com/dcentralverse/dcvx-go"
	"github.com/dcentralverse/dcvx-go/encoding"
	"github.com/dcentralverse/dcvx-go/exchange"
	dcvxhttp "github.com/dcentralverse/dcvx-go/http"
	"github.com/dcentralverse/dcvx-go/royalty"
	"github.com/dcentralverse/dcvx-go/validation"
)

// ExchangeServer wraps an MCP server and exposes exchange settlement
// operations as tools.
type ExchangeServer struct {
	mcpServer *mcpserver.MCPServer
	exchange  *exchange.Exchange
	royalties *royalty.Provider
}

// NewExchangeServer creates an MCP server bound to a settlement engine
// and its royalty registry.
func NewExchangeServer(name, version string, ex *exchange.Exchange, royalties *royalty.Provider) *ExchangeServer {
	s := &ExchangeServer{
		mcpServer: mcpserver.NewMCPServer(name, version),
		exchange:  ex,
		royalties: royalties,
	}
	s.registerTools()
	return s
}

// Handler returns a streamable HTTP handler for the MCP server.
func (s *ExchangeServer) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// Start serves the MCP server on the given address.
func (s *ExchangeServer) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

// GetMCPServer returns the underlying MCP server (for advanced usage).
func (s *ExchangeServer) GetMCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *ExchangeServer) registerTools() {
	settleTool := mcpproto.NewTool(
		"settle_order",
		mcpproto.WithDescription("Settle a signed order: a sale purchase or an offer acceptance, chosen by the envelope's kind"),
		mcpproto.WithString("caller", mcpproto.Required(), mcpproto.Description("Address performing settlement (buyer for sales, NFT holder for offers)")),
		mcpproto.WithString("order", mcpproto.Required(), mcpproto.Description("Base64-encoded signed order envelope")),
		mcpproto.WithString("value", mcpproto.Description("Supplied native currency in atomic units (sales only)")),
	)
	s.mcpServer.AddTool(settleTool, s.handleSettleOrder)

	cancelTool := mcpproto.NewTool(
		"cancel_nonce",
		mcpproto.WithDescription("Invalidate one of the caller's own order nonces so orders signed with it can never settle"),
		mcpproto.WithString("caller", mcpproto.Required(), mcpproto.Description("Address whose nonce is cancelled")),
		mcpproto.WithString("nonce", mcpproto.Required(), mcpproto.Description("Nonce to cancel, decimal")),
	)
	s.mcpServer.AddTool(cancelTool, s.handleCancelNonce)

	nonceTool := mcpproto.NewTool(
		"nonce_status",
		mcpproto.WithDescription("Check whether a (signer, nonce) pair has been spent or cancelled"),
		mcpproto.WithString("signer", mcpproto.Required(), mcpproto.Description("Order signer address")),
		mcpproto.WithString("nonce", mcpproto.Required(), mcpproto.Description("Nonce to check, decimal")),
	)
	s.mcpServer.AddTool(nonceTool, s.handleNonceStatus)

	quoteTool := mcpproto.NewTool(
		"royalty_quote",
		mcpproto.WithDescription("Compute the royalty recipient and amount for a token at a given price"),
		mcpproto.WithString("collection", mcpproto.Required(), mcpproto.Description("NFT contract address")),
		mcpproto.WithString("token_id", mcpproto.Required(), mcpproto.Description("Token id, decimal")),
		mcpproto.WithString("price", mcpproto.Required(), mcpproto.Description("Price in atomic units, decimal")),
	)
	s.mcpServer.AddTool(quoteTool, s.handleRoyaltyQuote)
}

func (s *ExchangeServer) handleSettleOrder(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	args := req.GetArguments()

	caller, err := parseAddress(args, "caller")
	if err != nil {
		return toolError(err), nil
	}
	encoded, _ := args["order"].(string)
	order, err := encoding.DecodeOrder(encoded)
	if err != nil {
		return toolError(err), nil
	}
	if err := validation.ValidateSignedOrder(order); err != nil {
		return toolError(err), nil
	}

	var value *big.Int
	if raw, ok := args["value"].(string); ok && raw != "" {
		if err := validation.ValidateAmount(raw); err != nil {
			return toolError(err), nil
		}
		value, _ = new(big.Int).SetString(raw, 10)
	}

	switch order.Kind {
	case dcvx.OrderKindSale:
		err = s.exchange.BuyFromSale(ctx, caller, value, order.Signature, *order.Sale)
	case dcvx.OrderKindSaleWithRoyalty:
		err = s.exchange.BuyFromSaleWithRoyalty(ctx, caller, value, order.Signature, order.RoyaltySignature, *order.SaleWithRoyalty)
	case dcvx.OrderKindOffer:
		err = s.exchange.AcceptOffer(ctx, caller, order.Signature, *order.Offer)
	default:
		return toolError(fmt.Errorf("unknown order kind %q", order.Kind)), nil
	}
	if err != nil {
		return settlementError(err), nil
	}

	return textResult(fmt.Sprintf("settled %s order for caller %s", order.Kind, caller.Hex())), nil
}

func (s *ExchangeServer) handleCancelNonce(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	args := req.GetArguments()

	caller, err := parseAddress(args, "caller")
	if err != nil {
		return toolError(err), nil
	}
	nonce, err := parseBigInt(args, "nonce")
	if err != nil {
		return toolError(err), nil
	}

	if err := s.exchange.CancelNonce(caller, nonce); err != nil {
		return settlementError(err), nil
	}
	return textResult(fmt.Sprintf("nonce %s cancelled for %s", nonce, caller.Hex())), nil
}

func (s *ExchangeServer) handleNonceStatus(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	args := req.GetArguments()

	signer, err := parseAddress(args, "signer")
	if err != nil {
		return toolError(err), nil
	}
	nonce, err := parseBigInt(args, "nonce")
	if err != nil {
		return toolError(err), nil
	}

	if s.exchange.IsNonceUsed(signer, nonce) {
		return textResult("used"), nil
	}
	return textResult("unused"), nil
}

func (s *ExchangeServer) handleRoyaltyQuote(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	args := req.GetArguments()

	collection, err := parseAddress(args, "collection")
	if err != nil {
		return toolError(err), nil
	}
	tokenID, err := parseBigInt(args, "token_id")
	if err != nil {
		return toolError(err), nil
	}
	price, err := parseBigInt(args, "price")
	if err != nil {
		return toolError(err), nil
	}

	recipient, amount := s.royalties.CalculateRoyaltiesAndGetRecipient(collection, tokenID, price)
	return textResult(fmt.Sprintf("recipient %s amount %s", recipient.Hex(), amount)), nil
}

func parseAddress(args map[string]any, key string) (common.Address, error) {
	raw, _ := args[key].(string)
	if err := validation.ValidateAddress(raw); err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", key, err)
	}
	return common.HexToAddress(raw), nil
}

func parseBigInt(args map[string]any, key string) (*big.Int, error) {
	raw, _ := args[key].(string)
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s: expected non-negative decimal, got %q", key, raw)
	}
	return n, nil
}

func textResult(msg string) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.NewTextContent(msg)},
	}
}

func toolError(err error) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		IsError: true,
		Content: []mcpproto.Content{mcpproto.NewTextContent(err.Error())},
	}
}

// settlementError reports a failed settlement with its stable signal
// name so agents can branch without parsing prose.
func settlementError(err error) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		IsError: true,
		Content: []mcpproto.Content{
			mcpproto.NewTextContent(fmt.Sprintf("%s: %v", dcvxhttp.ErrorCode(err), err)),
		},
	}
}
