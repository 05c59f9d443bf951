package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      any `json:"id"`
	Result  any `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    any `json:"data,omitempty"`
}

// MCP structures
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCPServer exposes the bot's REST API as MCP tools over stdio.
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
	client      *http.Client
}

func NewMCPServer() *MCPServer {
	apiURL := os.Getenv("ONLINEBOT_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	return &MCPServer{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiUsername: os.Getenv("ONLINEBOT_API_USERNAME"),
		apiPassword: os.Getenv("ONLINEBOT_API_PASSWORD"),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Run answers one JSON-RPC request per input line until in is exhausted.
func (s *MCPServer) Run(in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err != io.EOF {
				slog.Error("mcp_read_failed", "error", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			slog.Warn("mcp_invalid_json", "error", err)
			continue
		}

		// Notifications carry no id and get no response
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		response := s.handleRequest(req)
		responseBytes, _ := json.Marshal(response)
		fmt.Fprintln(out, string(responseBytes))
	}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: nil}
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
	}
	result.ServerInfo.Name = "onlinebot-mcp"
	result.ServerInfo.Version = "1.2.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *MCPServer) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	chatID := Property{Type: "number", Description: "Telegram chat ID"}

	tools := []Tool{
		{
			Name:        "online_list_events",
			Description: "List all upcoming events with start time, location, seats and registration start.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "online_next",
			Description: "Get the next events and the next registrations to open.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"n": {Type: "number", Description: "How many of each (default 3)"},
				},
			},
		},
		{
			Name:        "online_month_calendar",
			Description: "Get the month grid with days that have events. Selecting a day lists its events.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"month":    {Type: "string", Description: "Month as YYYY-MM (default current month)"},
					"selected": {Type: "number", Description: "Day of month to list events for"},
				},
			},
		},
		{
			Name:        "online_list_careers",
			Description: "List current career opportunities.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "online_list_reminders",
			Description: "List pending registration reminders, optionally for one chat.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"chat_id": chatID},
			},
		},
		{
			Name:        "online_schedule_reminder",
			Description: "Schedule a reminder before registration for an event opens.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"chat_id":  chatID,
					"event_id": {Type: "number", Description: "Event ID"},
					"lead":     {Type: "string", Description: "How long before registration", Enum: []string{"15m", "30m", "1d"}},
				},
				Required: []string{"chat_id", "event_id"},
			},
		},
		{
			Name:        "online_cancel_reminder",
			Description: "Cancel a pending reminder by its ID.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"reminder_id": {Type: "string", Description: "Reminder ID"},
				},
				Required: []string{"reminder_id"},
			},
		},
	}

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: tools}}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	var result string
	var isError bool

	switch params.Name {
	case "online_list_events":
		result, isError = s.apiGet("/api/events", nil)
	case "online_next":
		result, isError = s.apiGet("/api/events/next", query(params.Arguments, "n"))
	case "online_month_calendar":
		result, isError = s.apiGet("/api/calendar", query(params.Arguments, "month", "selected"))
	case "online_list_careers":
		result, isError = s.apiGet("/api/careers", nil)
	case "online_list_reminders":
		result, isError = s.apiGet("/api/reminders", query(params.Arguments, "chat_id"))
	case "online_schedule_reminder":
		body := map[string]any{
			"chat_id":  intArg(params.Arguments["chat_id"]),
			"event_id": intArg(params.Arguments["event_id"]),
		}
		if lead, ok := params.Arguments["lead"].(string); ok {
			body["lead"] = lead
		}
		result, isError = s.apiRequest(http.MethodPost, "/api/reminders", nil, body)
	case "online_cancel_reminder":
		id := fmt.Sprintf("%v", params.Arguments["reminder_id"])
		result, isError = s.apiRequest(http.MethodDelete, "/api/reminder/"+url.PathEscape(id), nil, nil)
	default:
		result = "Unknown tool: " + params.Name
		isError = true
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

// query copies the named arguments into URL query values.
func query(args map[string]any, keys ...string) url.Values {
	values := url.Values{}
	for _, k := range keys {
		v, ok := args[k]
		if !ok || v == nil {
			continue
		}
		if n, isNum := v.(float64); isNum {
			values.Set(k, strconv.FormatInt(int64(n), 10))
			continue
		}
		values.Set(k, fmt.Sprintf("%v", v))
	}
	return values
}

// JSON numbers decode as float64; chat IDs need the integer form.
func intArg(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func (s *MCPServer) apiGet(path string, params url.Values) (string, bool) {
	return s.apiRequest(http.MethodGet, path, params, nil)
}

func (s *MCPServer) apiRequest(method, path string, params url.Values, body any) (string, bool) {
	target := s.apiURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, target, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}

	req.SetBasicAuth(s.apiUsername, s.apiPassword)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}

	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return string(respBody), resp.StatusCode >= 400
	}

	if !apiResp.Success {
		return fmt.Sprintf("API Error: %s", apiResp.Error), true
	}

	var prettyData bytes.Buffer
	if err := json.Indent(&prettyData, apiResp.Data, "", "  "); err != nil {
		return string(apiResp.Data), false
	}

	return prettyData.String(), false
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	server := NewMCPServer()
	server.Run(os.Stdin, os.Stdout)
}
