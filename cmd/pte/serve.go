package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/scott-cotton/cli"
	"go.lsp.dev/jsonrpc2"

	"github.com/signadot/ptedit/editor"
	"github.com/signadot/ptedit/patch"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
)

const (
	methodValue    = "editor/value"
	methodSelect   = "editor/select"
	methodApply    = "editor/apply"
	methodPatches  = "editor/patches"
	methodGet      = "editor/get"
	methodReadOnly = "editor/readOnly"
	methodEvent    = "editor/event"
)

// error codes reported for editor failures, in the JSON-RPC server range
const (
	codeReadOnly         jsonrpc2.Code = -32010
	codeStaleReference   jsonrpc2.Code = -32011
	codeSchemaViolation  jsonrpc2.Code = -32012
	codeInvalidOperation jsonrpc2.Code = -32013
)

type stdioReadWriteCloser struct {
	read  io.Reader
	write io.Writer
}

func (s *stdioReadWriteCloser) Read(p []byte) (n int, err error) {
	return s.read.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (n int, err error) {
	return s.write.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	return nil
}

// session serves one editor to one host connection.
type session struct {
	mu   sync.Mutex
	ed   *editor.Editor
	conn jsonrpc2.Conn
	log  *slog.Logger
}

// state is the result of editor/get.
type state struct {
	State     string           `json:"state"`
	Revision  string           `json:"revision"`
	ReadOnly  bool             `json:"readOnly"`
	Value     pt.Document      `json:"value"`
	Selection *selection.Range `json:"selection"`
}

// applied is the result of the methods that change the editor.
type applied struct {
	Revision string `json:"revision"`
	Events   int    `json:"events"`
}

func invalidParams(err error) error {
	return jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error())
}

func rpcError(err error) error {
	code := jsonrpc2.InternalError
	switch pt.ErrorKind(err) {
	case "read-only":
		code = codeReadOnly
	case "stale-reference":
		code = codeStaleReference
	case "schema-violation":
		code = codeSchemaViolation
	case "invalid-operation":
		code = codeInvalidOperation
	}
	return jsonrpc2.NewError(code, err.Error())
}

// dispatch runs one request against the editor and returns its result and
// the events to push to the host.
func (s *session) dispatch(method string, params json.RawMessage) (any, []editor.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		evs []editor.Event
		err error
	)
	switch method {
	case methodValue:
		var doc pt.Document
		if err := json.Unmarshal(params, &doc); err != nil {
			return nil, nil, invalidParams(err)
		}
		evs, err = s.ed.ApplyValue(doc)
	case methodSelect:
		var r *selection.Range
		if err := json.Unmarshal(params, &r); err != nil {
			return nil, nil, invalidParams(err)
		}
		evs, err = s.ed.ApplySelection(r)
	case methodApply:
		op, derr := editor.DecodeOperation(params)
		if derr != nil {
			return nil, nil, invalidParams(derr)
		}
		evs, err = s.ed.Apply(op)
	case methodPatches:
		var ps []patch.Patch
		if err := json.Unmarshal(params, &ps); err != nil {
			return nil, nil, invalidParams(err)
		}
		evs, err = s.ed.ApplyPatches(ps)
	case methodReadOnly:
		var ro bool
		if err := json.Unmarshal(params, &ro); err != nil {
			return nil, nil, invalidParams(err)
		}
		s.ed.SetReadOnly(ro)
	case methodGet:
		return state{
			State:     s.ed.State().String(),
			Revision:  s.ed.Revision(),
			ReadOnly:  s.ed.ReadOnly(),
			Value:     s.ed.Value(),
			Selection: s.ed.Selection(),
		}, nil, nil
	default:
		return nil, nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, method)
	}
	if err != nil {
		return nil, evs, rpcError(err)
	}
	return applied{Revision: s.ed.Revision(), Events: len(evs)}, evs, nil
}

func (s *session) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	res, evs, err := s.dispatch(req.Method(), req.Params())
	for i := range evs {
		if nerr := s.conn.Notify(ctx, methodEvent, &evs[i]); nerr != nil {
			s.log.Error("event not delivered", "type", evs[i].Type, "error", nerr)
		}
	}
	return reply(ctx, res, err)
}

func serve(cfg *ServeConfig, cc *cli.Context, args []string) error {
	if _, err := cfg.Serve.Parse(cc, args); err != nil {
		return err
	}
	log := newLog(os.Stderr, cfg.LogJSON)
	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Warn("gops agent failed", "error", err)
		} else {
			defer agent.Close()
		}
	}
	ed, err := newEditor(cfg.MainConfig, cfg.Keys, cfg.ReadOnly, cfg.Sync, log)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := jsonrpc2.NewStream(&stdioReadWriteCloser{read: cc.In, write: cc.Out})
	conn := jsonrpc2.NewConn(stream)
	s := &session{ed: ed, conn: conn, log: log.With("editor", ed.ID())}
	conn.Go(ctx, jsonrpc2.ReplyHandler(s.handle))
	s.log.Info("serving")

	select {
	case <-conn.Done():
	case <-ctx.Done():
		conn.Close()
		return nil
	}
	if err := conn.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
