package dhandha

import (
	"net/http"
	"strings"

	"github.com/gobwas/ws"

	"github.com/topazahmed/dhandha/auth"
)

type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// HandleSocket gates every connection attempt behind token
// verification. The token travels in the handshake request, either as
// a `token` query parameter or an Authorization bearer header. A
// missing or unverifiable token fails the handshake before the
// upgrade; the client has to reconnect with a fresh credential.
func (hub *Hub) HandleSocket(verifier auth.Verifier, onError ErrorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := handshakeToken(r)
		if token == "" {
			onError(w, r, auth.ErrMissingToken)
			return
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			onError(w, r, err)
			return
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			onError(w, r, err)
			return
		}
		hub.Slogger.Info("new socket connection", "user", identity)

		// Join the personal room before the loops start, so the first
		// inbound frame and concurrent fan-outs both see the membership.
		ss := NewSocketSession(conn, identity, hub.messages)
		hub.Connect(ss)
		ss.Start()
	}
}

func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}
