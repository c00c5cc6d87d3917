// Package diag serves read-only session diagnostics over HTTP/3: the live
// trap state, the register file, the breakpoint slot, and the loaded
// image's symbol table.
package diag

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	http3 "github.com/quic-go/quic-go/http3"

	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/session"
	"github.com/trapmon-dev/trapmon/internal/symbols"
)

// SnapshotFunc returns the most recent session state; false when no debug
// session has been served yet.
type SnapshotFunc func() (session.Snapshot, bool)

// Server wraps the http3.Server lifecycle around the diagnostics mux.
type Server struct {
	srv   *http3.Server
	pc    net.PacketConn
	addr  string
	close func() error
}

// New builds a diagnostics server reading from snap and table.
func New(addr string, tlsCfg *tls.Config, snap SnapshotFunc, table *symbols.Table) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", handleStatus(snap, table))
	mux.HandleFunc("/registers", handleRegisters(snap))
	mux.HandleFunc("/breakpoint", handleBreakpoint(snap))
	mux.HandleFunc("/symbols", handleSymbols(table))
	s := &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: mux}
	return &Server{srv: s, addr: addr}
}

// Start begins serving on a UDP socket, ephemeral when addr ends with
// ":0". The returned string is the actual bound address.
func (s *Server) Start() (string, error) {
	var err error
	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}
	realAddr := s.pc.LocalAddr().String()
	done := make(chan struct{})
	go func() {
		_ = s.srv.Serve(s.pc)
		close(done)
	}()
	s.close = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
	return realAddr, nil
}

// Stop stops the server.
func (s *Server) Stop() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

// Client returns an http.Client speaking HTTP/3 with the given TLS config.
func Client(tlsCfg *tls.Config, timeout time.Duration) *http.Client {
	tr := &http3.Transport{TLSClientConfig: tlsCfg}
	return &http.Client{Transport: tr, Timeout: timeout}
}

// CloseClient shuts the client's HTTP/3 round tripper down.
func CloseClient(c *http.Client) {
	if tr, ok := c.Transport.(*http3.Transport); ok {
		_ = tr.Close()
	}
}

type statusReply struct {
	Active   bool   `json:"active"`
	Halt     int    `json:"halt_vector"`
	Traps    uint64 `json:"traps"`
	Acks     int    `json:"acks"`
	Parked   bool   `json:"parked"`
	PC       string `json:"pc"`
	PCSymbol string `json:"pc_symbol,omitempty"`
}

type registerReply struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type breakpointReply struct {
	Active bool   `json:"active"`
	Addr   string `json:"addr,omitempty"`
	Opcode string `json:"opcode,omitempty"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func handleStatus(snap SnapshotFunc, table *symbols.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := snap()
		if !ok {
			writeJSON(w, statusReply{})
			return
		}
		reply := statusReply{
			Active: st.Running,
			Halt:   st.Halt,
			Traps:  st.Traps,
			Acks:   st.Acks,
			Parked: st.Parked,
			PC:     fmt.Sprintf("%#x", st.Regs.PC()),
		}
		if table != nil {
			reply.PCSymbol = table.Name(st.Regs.PC())
		}
		writeJSON(w, reply)
	}
}

func handleRegisters(snap SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := snap()
		if !ok {
			http.Error(w, "no session", http.StatusServiceUnavailable)
			return
		}
		out := make([]registerReply, machine.NumRegs)
		for i, v := range st.Regs {
			out[i] = registerReply{Name: machine.RegisterNames[i], Value: fmt.Sprintf("%#x", v)}
		}
		writeJSON(w, out)
	}
}

func handleBreakpoint(snap SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := snap()
		if !ok || !st.Slot.Valid {
			writeJSON(w, breakpointReply{})
			return
		}
		writeJSON(w, breakpointReply{
			Active: true,
			Addr:   fmt.Sprintf("%#x", st.Slot.Addr),
			Opcode: fmt.Sprintf("%#010x", st.Slot.Opcode),
		})
	}
}

func handleSymbols(table *symbols.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if table == nil {
			writeJSON(w, []symbols.Symbol{})
			return
		}
		writeJSON(w, table.Symbols())
	}
}
