package main

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/LeeXN/finance-gateway/internal/facade"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// rpcRequest is the subset of JSON-RPC 2.0 request framing this loop
// understands: no batching, no notifications without an id.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallParams is the payload of a tools/call request.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// contentEnvelope is the spec.md §6 result shape every tools/call response
// carries, whether it succeeded or failed.
type contentEnvelope struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolSchema describes one entry of the tools/list result.
type toolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// toolCatalog is the static tool schema set from spec.md §6's table,
// returned verbatim by tools/list.
var toolCatalog = []toolSchema{
	{"get_stock_quote", "Real-time or last-traded quote for a symbol"},
	{"get_quote", "Alias of get_stock_quote"},
	{"get_stock_candles", "OHLCV bars for a symbol over a date range and resolution"},
	{"get_daily_prices", "Date-keyed map of end-of-day bars for a symbol"},
	{"get_news", "Recent news and press releases about a symbol"},
	{"get_company_overview", "Issuer/company metadata for a symbol"},
	{"get_company_basic_financials", "Summary financial ratios for a symbol"},
	{"get_company_metrics", "Company metadata, optionally narrowed by metricType"},
	{"get_income_statement", "Income-statement line items for a symbol"},
	{"get_balance_sheet", "Balance-sheet line items for a symbol"},
	{"get_cash_flow", "Cash-flow-statement line items for a symbol"},
	{"get_technical_indicator", "A named technical-indicator series for a symbol"},
}

// serve reads newline-delimited JSON-RPC requests from r, dispatches each
// through f, and writes newline-delimited JSON-RPC responses to w, until
// ctx is cancelled or r reaches EOF.
func serve(ctx context.Context, f *facade.Facade, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn().Err(err).Msg("malformed JSON-RPC request line, skipping")
			continue
		}

		resp := handleRequest(ctx, f, req)
		if err := writeResponse(w, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func handleRequest(ctx context.Context, f *facade.Facade, req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "tools/list":
		resp.Result = map[string]any{"tools": toolCatalog}
	case "tools/call":
		var params toolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}
			return resp
		}
		resp.Result = callTool(ctx, f, params)
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}
	return resp
}

// callTool dispatches one tools/call to its facade entry point and always
// returns a populated contentEnvelope — the JSON-RPC "error" field is
// reserved for transport-level faults (bad method, bad params shape); a
// tool-level failure (invalid argument, upstream exhaustion) is reported
// via isError:true inside the result, per spec.md §6/§7.
func callTool(ctx context.Context, f *facade.Facade, params toolCallParams) contentEnvelope {
	data, err := dispatchTool(ctx, f, params.Name, params.Arguments)
	if err != nil {
		return errorEnvelope(err)
	}

	text, err := json.Marshal(data)
	if err != nil {
		return errorEnvelope(err)
	}
	return contentEnvelope{Content: []contentItem{{Type: "text", Text: string(text)}}}
}

func errorEnvelope(err error) contentEnvelope {
	return contentEnvelope{
		Content: []contentItem{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

// dispatchTool unmarshals arguments into the typed struct the named tool's
// facade method expects and invokes it. Unknown tool names surface as
// facade.ErrInvalidArgument so the caller sees the same isError:true shape
// as any other bad-input case.
func dispatchTool(ctx context.Context, f *facade.Facade, name string, raw json.RawMessage) (any, error) {
	switch name {
	case "get_stock_quote":
		var args facade.GetStockQuoteArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetStockQuote(ctx, args)
	case "get_quote":
		var args facade.GetStockQuoteArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetQuote(ctx, args)
	case "get_stock_candles":
		var args facade.GetStockCandlesArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetStockCandles(ctx, args)
	case "get_daily_prices":
		var args facade.GetDailyPricesArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetDailyPrices(ctx, args)
	case "get_news":
		var args facade.GetNewsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetNews(ctx, args)
	case "get_company_overview":
		var args facade.GetCompanyOverviewArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetCompanyOverview(ctx, args)
	case "get_company_basic_financials":
		var args facade.GetCompanyBasicFinancialsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetCompanyBasicFinancials(ctx, args)
	case "get_company_metrics":
		var args facade.GetCompanyMetricsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetCompanyMetrics(ctx, args)
	case "get_income_statement":
		var args facade.StatementArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetIncomeStatement(ctx, args)
	case "get_balance_sheet":
		var args facade.StatementArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetBalanceSheet(ctx, args)
	case "get_cash_flow":
		var args facade.StatementArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetCashFlow(ctx, args)
	case "get_technical_indicator":
		var args facade.GetTechnicalIndicatorArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.Join(facade.ErrInvalidArgument, err)
		}
		return f.GetTechnicalIndicator(ctx, args)
	default:
		return nil, errors.Join(facade.ErrInvalidArgument, errors.New("unknown tool: "+name))
	}
}

func writeResponse(w io.Writer, resp rpcResponse) error {
	enc, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(enc); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}
