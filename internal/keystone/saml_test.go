package keystone

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ark-go/internal/archive"
)

const samlFailure = "urn:oasis:names:tc:SAML:2.0:status:Requester"

// newFederationServer hosts both sides of the ECP exchange: the service
// provider under /v3/OS-FEDERATION/... plus /consumer, and the identity
// provider under /idp. The identity provider accepts alice/hunter2;
// "ghost" authenticates but gets a failed SAML status.
func newFederationServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	spPath := "/v3/OS-FEDERATION/identity_providers/testidp/protocols/mapped/auth"
	mux.HandleFunc(spPath, func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("sid"); err == nil {
			// Leg 4: the relayed assertion established a session.
			w.Header().Set("X-Subject-Token", "federated-token")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"token":{"expires_at":"2026-09-01T00:00:00.000000Z","user":{"id":"uid-9","name":"alice"}}}`)
			return
		}
		// Leg 1: hand out the authentication request envelope.
		if r.Header.Get("PAOS") == "" {
			t.Error("missing PAOS header on the federation request")
		}
		fmt.Fprintf(w, `<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"
			xmlns:paos="urn:liberty:paos:2003-08"
			xmlns:ecp="urn:oasis:names:tc:SAML:2.0:profiles:SSO:ecp">
			<S:Header>
				<paos:Request responseConsumerURL=%q/>
				<ecp:RelayState>rs-1</ecp:RelayState>
			</S:Header>
			<S:Body>
				<samlp:AuthnRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" ID="req-1"/>
			</S:Body>
		</S:Envelope>`, srv.URL+"/consumer")
	})

	mux.HandleFunc("/idp", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		status := samlSuccess
		if user == "ghost" {
			status = samlFailure
		}
		fmt.Fprintf(w, `<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"
			xmlns:ecp="urn:oasis:names:tc:SAML:2.0:profiles:SSO:ecp">
			<S:Header>
				<ecp:Response AssertionConsumerServiceURL=%q/>
			</S:Header>
			<S:Body>
				<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol">
					<samlp:Status><samlp:StatusCode Value=%q/></samlp:Status>
				</samlp:Response>
			</S:Body>
		</S:Envelope>`, srv.URL+"/consumer", status)
	})

	mux.HandleFunc("/consumer", func(w http.ResponseWriter, r *http.Request) {
		// Leg 3: the relayed envelope must restore the relay state.
		var env ecpEnvelope
		if err := xml.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decoding relayed envelope: %v", err)
		}
		if env.Header.RelayState != "rs-1" {
			t.Errorf("RelayState = %q, want rs-1", env.Header.RelayState)
		}
		if !strings.Contains(string(env.Body.Inner), "Response") {
			t.Error("relayed body does not carry the assertion response")
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "ok", Path: "/"})
	})

	return srv
}

func TestClient_AuthenticatePassword(t *testing.T) {
	t.Run("completes the four-leg exchange", func(t *testing.T) {
		t.Parallel()
		srv := newFederationServer(t)
		c := New(srv.URL+"/v3", "testidp", srv.URL+"/idp", nil)

		s, err := c.AuthenticatePassword(context.Background(), "alice", "hunter2")
		if err != nil {
			t.Fatalf("AuthenticatePassword() error = %v", err)
		}
		if s.Token != "federated-token" {
			t.Errorf("Token = %q, want federated-token", s.Token)
		}
		if s.UserID != "uid-9" {
			t.Errorf("UserID = %q, want uid-9", s.UserID)
		}
	})

	t.Run("wrong password is ErrAuthentication", func(t *testing.T) {
		t.Parallel()
		srv := newFederationServer(t)
		c := New(srv.URL+"/v3", "testidp", srv.URL+"/idp", nil)

		_, err := c.AuthenticatePassword(context.Background(), "alice", "wrong")
		if !errors.Is(err, archive.ErrAuthentication) {
			t.Fatalf("got %v, want ErrAuthentication", err)
		}
		if !strings.Contains(err.Error(), "password") {
			t.Errorf("error %q does not name the rejected password", err)
		}
	})

	t.Run("failed SAML status is ErrAuthentication", func(t *testing.T) {
		t.Parallel()
		srv := newFederationServer(t)
		c := New(srv.URL+"/v3", "testidp", srv.URL+"/idp", nil)

		_, err := c.AuthenticatePassword(context.Background(), "ghost", "hunter2")
		if !errors.Is(err, archive.ErrAuthentication) {
			t.Fatalf("got %v, want ErrAuthentication", err)
		}
		if !strings.Contains(err.Error(), samlFailure) {
			t.Errorf("error %q does not carry the SAML status", err)
		}
	})
}

func TestBuildAuthnResponse(t *testing.T) {
	t.Parallel()
	envelope := buildAuthnResponse("state & more", []byte(`<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"/>`))

	var env ecpEnvelope
	if err := xml.Unmarshal(envelope, &env); err != nil {
		t.Fatalf("the built envelope does not parse: %v", err)
	}
	if env.Header.RelayState != "state & more" {
		t.Errorf("RelayState = %q, want the escaped original", env.Header.RelayState)
	}
	if !strings.Contains(string(env.Body.Inner), "samlp:Response") {
		t.Error("body lost the relayed response")
	}
}
