// Package hosttest provides an in-process fake of the host's JSON-RPC server
// for tests. It keeps an installed add-on set, simulates install latency,
// maps special://home/ onto a local directory, and records every call.
package hosttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Fake JSON-RPC error codes, matching what a real host sends.
const (
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternal       = -32603
)

// Server is a fake host. All methods are safe for concurrent use.
type Server struct {
	URL string

	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	home          string
	installed     map[string]bool
	enabled       map[string]bool
	pending       map[string]int
	latency       map[string]int
	never         map[string]bool
	disabled      map[string]bool
	failing       map[string]bool
	raw           map[string]string
	files         map[string]bool
	settings      map[string]any
	builtins      []string
	calls         []string
	version       int
	modalPolls    int
	notifications bool
	quit          bool
}

// NewServer starts a fake host. home backs special://home/ and may be empty.
// Callers must Close the server.
func NewServer(home string) *Server {
	s := &Server{
		home:      home,
		installed: map[string]bool{},
		enabled:   map[string]bool{},
		pending:   map[string]int{},
		latency:   map[string]int{},
		never:     map[string]bool{},
		disabled:  map[string]bool{},
		failing:   map[string]bool{},
		raw:       map[string]string{},
		files:     map[string]bool{},
		settings: map[string]any{
			"lookandfeel.skin": "skin.estuary",
		},
		version: 21,
	}
	s.srv = httptest.NewServer(s)
	s.URL = s.srv.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// WebSocketURL returns the ws:// address of the server.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/jsonrpc"
}

// SetInstalled marks ids as already installed and enabled.
func (s *Server) SetInstalled(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.installed[id] = true
		s.enabled[id] = true
	}
}

// SetInstallLatency makes id appear in the installed list only after polls
// calls to Addons.GetAddons following its install request. The default is 1.
func (s *Server) SetInstallLatency(id string, polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency[id] = polls
}

// NeverInstall makes install requests for ids succeed without the add-ons
// ever appearing.
func (s *Server) NeverInstall(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.never[id] = true
	}
}

// DisableMethod makes the server answer method with "Method not found".
func (s *Server) DisableMethod(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[method] = true
}

// FailMethod makes the server answer method with an internal error.
func (s *Server) FailMethod(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[method] = true
}

// SetRawResponse makes the server answer method with body verbatim.
func (s *Server) SetRawResponse(method, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[method] = body
}

// AddFile makes a non-home VFS path report as present.
func (s *Server) AddFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = true
}

// SetModalOpen keeps the confirmation dialog open for the next polls queries.
func (s *Server) SetModalOpen(polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalPolls = polls
}

// SetSetting sets a host setting value.
func (s *Server) SetSetting(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[name] = value
}

// Setting returns a host setting value.
func (s *Server) Setting(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[name]
}

// SetVersion sets the reported major version. Zero omits the version.
func (s *Server) SetVersion(major int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = major
}

// SendNotifications makes websocket replies be preceded by an unsolicited
// notification.
func (s *Server) SendNotifications(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = on
}

// Installed returns the sorted installed ids.
func (s *Server) Installed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.installed)
}

// IsEnabled reports whether id was enabled.
func (s *Server) IsEnabled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[id]
}

// Builtins returns the builtin commands received, in order.
func (s *Server) Builtins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.builtins...)
}

// Calls returns the JSON-RPC methods received, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how many times method was called.
func (s *Server) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

// QuitRequested reports whether Application.Quit was called.
func (s *Server) QuitRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWebSocket(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.handle(req))
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		s.mu.Lock()
		notify := s.notifications
		s.mu.Unlock()
		if notify {
			_ = conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"jsonrpc":"2.0","method":"GUI.OnScreensaverDeactivated","params":{"data":null,"sender":"xbmc"}}`))
		}
		if err := conn.WriteMessage(websocket.TextMessage, s.handle(req)); err != nil {
			return
		}
	}
}

func (s *Server) handle(req request) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req.Method)

	if body, ok := s.raw[req.Method]; ok {
		return []byte(body)
	}
	if s.disabled[req.Method] {
		return encode(req.ID, nil, &rpcErr{Code: codeMethodNotFound, Message: "Method not found."})
	}
	if s.failing[req.Method] {
		return encode(req.ID, nil, &rpcErr{Code: codeInternal, Message: "Internal error."})
	}

	var params map[string]any
	_ = json.Unmarshal(req.Params, &params)

	result, rerr := s.dispatch(req.Method, params)
	return encode(req.ID, result, rerr)
}

func (s *Server) dispatch(method string, params map[string]any) (any, *rpcErr) {
	invalid := &rpcErr{Code: codeInvalidParams, Message: "Invalid params."}

	switch method {
	case "JSONRPC.Ping":
		return "pong", nil

	case "JSONRPC.Introspect":
		return map[string]any{
			"description": "fake host",
			"id":          "http://xbmc.org/jsonrpc/ServiceDescription.json",
			"version":     "13.0.0",
		}, nil

	case "Application.GetProperties":
		if s.version == 0 {
			return map[string]any{}, nil
		}
		return map[string]any{"version": map[string]any{"major": s.version, "minor": 0}}, nil

	case "Application.Quit":
		s.quit = true
		return "OK", nil

	case "Addons.GetAddons":
		s.advancePending()
		addons := make([]map[string]any, 0, len(s.installed))
		for _, id := range sortedKeys(s.installed) {
			addons = append(addons, map[string]any{
				"addonid": id,
				"type":    addonType(id),
				"enabled": s.enabled[id],
				"version": "1.0.0",
			})
		}
		return map[string]any{
			"addons": addons,
			"limits": map[string]any{"start": 0, "end": len(addons), "total": len(addons)},
		}, nil

	case "Addons.Install":
		id, _ := params["addonid"].(string)
		if id == "" {
			return nil, invalid
		}
		s.schedule(id)
		return "OK", nil

	case "Addons.SetAddonEnabled":
		id, _ := params["addonid"].(string)
		if !s.installed[id] {
			return nil, invalid
		}
		s.enabled[id] = true
		return "OK", nil

	case "Addons.ExecuteAddon":
		inner, _ := params["params"].(map[string]any)
		cmd, _ := inner["builtin"].(string)
		if cmd == "" {
			return nil, invalid
		}
		s.builtins = append(s.builtins, cmd)
		s.runBuiltin(cmd)
		return "OK", nil

	case "Files.GetFileDetails":
		path, _ := params["file"].(string)
		if !s.fileExists(path) {
			return nil, invalid
		}
		return map[string]any{"filedetails": map[string]any{"file": path, "label": filepath.Base(path)}}, nil

	case "XBMC.GetInfoBooleans":
		names, _ := params["booleans"].([]any)
		open := s.modalPolls > 0
		if open {
			s.modalPolls--
		}
		out := map[string]bool{}
		for _, n := range names {
			if name, ok := n.(string); ok {
				out[name] = open
			}
		}
		return out, nil

	case "Settings.GetSettingValue":
		name, _ := params["setting"].(string)
		v, ok := s.settings[name]
		if !ok {
			return nil, invalid
		}
		return map[string]any{"value": v}, nil

	case "Settings.SetSettingValue":
		name, _ := params["setting"].(string)
		if name == "" {
			return nil, invalid
		}
		s.settings[name] = params["value"]
		return true, nil
	}

	return nil, &rpcErr{Code: codeMethodNotFound, Message: "Method not found."}
}

func (s *Server) runBuiltin(cmd string) {
	name, arg := splitBuiltin(cmd)
	switch name {
	case "InstallAddon":
		s.schedule(arg)
	case "EnableAddon":
		if s.installed[arg] {
			s.enabled[arg] = true
		}
	case "UpdateLocalAddons":
		s.scanHome()
	}
}

// schedule records an install request. Must be called with s.mu held.
func (s *Server) schedule(id string) {
	if s.never[id] || s.installed[id] {
		return
	}
	n, ok := s.latency[id]
	if !ok {
		n = 1
	}
	if n <= 0 {
		s.installed[id] = true
		s.enabled[id] = true
		return
	}
	s.pending[id] = n
}

// advancePending counts one poll against every pending install.
func (s *Server) advancePending() {
	for id, n := range s.pending {
		n--
		if n <= 0 {
			s.installed[id] = true
			s.enabled[id] = true
			delete(s.pending, id)
			continue
		}
		s.pending[id] = n
	}
}

// scanHome registers every add-on folder under home/addons that has a
// manifest, the way a local rescan does.
func (s *Server) scanHome() {
	if s.home == "" {
		return
	}
	entries, err := os.ReadDir(filepath.Join(s.home, "addons"))
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.home, "addons", e.Name(), "addon.xml")); err == nil {
			s.installed[e.Name()] = true
		}
	}
}

func (s *Server) fileExists(path string) bool {
	const homePrefix = "special://home/"
	if s.home != "" && strings.HasPrefix(path, homePrefix) {
		rel := filepath.FromSlash(strings.TrimPrefix(path, homePrefix))
		_, err := os.Stat(filepath.Join(s.home, rel))
		return err == nil
	}
	return s.files[path]
}

func splitBuiltin(cmd string) (string, string) {
	open := strings.IndexByte(cmd, '(')
	if open < 0 || !strings.HasSuffix(cmd, ")") {
		return cmd, ""
	}
	return cmd[:open], strings.TrimSpace(cmd[open+1 : len(cmd)-1])
}

func addonType(id string) string {
	if strings.HasPrefix(id, "repository.") {
		return "xbmc.addon.repository"
	}
	if strings.HasPrefix(id, "skin.") {
		return "xbmc.gui.skin"
	}
	return "xbmc.python.pluginsource"
}

func encode(id json.RawMessage, result any, e *rpcErr) []byte {
	resp := map[string]any{"jsonrpc": "2.0", "id": id}
	if e != nil {
		resp["error"] = e
	} else {
		resp["result"] = result
	}
	b, _ := json.Marshal(resp)
	return b
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
