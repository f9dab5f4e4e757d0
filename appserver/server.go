package appserver

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/aurex-chain/aurex/p2pmsg"
)

// SessionResolver is the external collaborator that authenticates a
// connection and reports its session username (§6.3's LOGIN/SIGNUP
// commands are out-of-scope external collaborators; this package only
// needs to know the result). A deployment wires this to whatever session
// layer owns LOGIN.
type SessionResolver interface {
	ResolveSession(conn net.Conn) (username string, err error)
}

// Server is the app server's TLS, pipe-delimited text protocol listener
// (§6.3). It handles only the two commands "relevant to the core": BUY and
// GET_TX_STATUS; anything else is an unrecognized-command error, since
// LOGIN/SIGNUP/UPLOAD are explicitly out-of-scope external collaborators.
type Server struct {
	pipeline *Pipeline
	sessions SessionResolver
	tlsCfg   *tls.Config

	host     string
	port     int
	listener net.Listener
	quit     chan struct{}
}

// NewServer builds a Server. tlsCfg may be nil only for tests that dial
// plain TCP; production deployments must supply a certificate.
func NewServer(pipeline *Pipeline, sessions SessionResolver, tlsCfg *tls.Config, host string, port int) *Server {
	return &Server{pipeline: pipeline, sessions: sessions, tlsCfg: tlsCfg, host: host, port: port, quit: make(chan struct{})}
}

// Start opens the listener (TLS-wrapped if a certificate is configured).
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var ln net.Listener
	var err error
	if s.tlsCfg != nil {
		ln, err = tls.Listen("tcp", addr, s.tlsCfg)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}
	s.listener = ln
	logger.Info("app server listening", "addr", ln.Addr().String(), "tls", s.tlsCfg != nil)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				logger.Error("app server accept failed", "err", err)
				return
			}
		}
		go s.handleSession(conn)
	}
}

// handleSession serves one client connection: §5 "1 thread per client
// session". Each framed message is one pipe-delimited command.
func (s *Server) handleSession(conn net.Conn) {
	defer conn.Close()

	username, err := s.sessions.ResolveSession(conn)
	if err != nil {
		logger.Debug("session resolution failed", "err", err)
		return
	}

	for {
		raw, err := p2pmsg.ReadFrame(conn)
		if err != nil {
			return
		}
		reply := s.dispatch(username, string(raw))
		if err := p2pmsg.WriteFrame(conn, []byte(reply)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(sessionUser, command string) string {
	fields := strings.Split(command, "|")
	if len(fields) == 0 {
		return "ERR|MALFORMED|empty command"
	}

	switch fields[0] {
	case "BUY":
		return s.handleBuy(sessionUser, fields)
	case "GET_TX_STATUS":
		return s.handleGetTxStatus(fields)
	default:
		return "ERR|UNKNOWN_COMMAND|" + fields[0]
	}
}

func (s *Server) handleBuy(sessionUser string, fields []string) string {
	if len(fields) != 4 {
		return "ERR|MALFORMED|expected BUY|asset_id|username|amount"
	}
	assetID, username, amountStr := fields[1], fields[2], fields[3]
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return "ERR|MALFORMED|amount is not a number"
	}

	txID, err := s.pipeline.Buy(sessionUser, BuyRequest{AssetID: assetID, Buyer: username, Amount: amount})
	if err != nil {
		return "ERR|" + errCode(err) + "|" + err.Error()
	}
	return "OK|PENDING|" + txID
}

func (s *Server) handleGetTxStatus(fields []string) string {
	if len(fields) != 2 {
		return "ERR|MALFORMED|expected GET_TX_STATUS|tx_id"
	}
	status, message, ok := s.pipeline.Status(fields[1])
	if !ok {
		return "ERR|NOT_FOUND|unknown tx_id"
	}
	return "OK|" + string(status) + "|" + message
}

func errCode(err error) string {
	switch err {
	case ErrUnauthorized:
		return "UNAUTHORIZED"
	case ErrAssetUnavailable:
		return "ASSET_UNAVAILABLE"
	case ErrPriceMismatch:
		return "PRICE_MISMATCH"
	case ErrInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	default:
		return "FAILED"
	}
}
