package keystone

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"ark-go/internal/archive"
)

// SAML2 ECP (Enhanced Client or Proxy) constants. The flow is the same
// one keystoneauth's V3Saml2Password plugin performs: the client relays
// SOAP envelopes between the service provider and the identity provider.
const (
	paosContentType = "application/vnd.paos+xml"
	paosAccept      = "text/html, application/vnd.paos+xml"
	paosHeaderValue = `ver="urn:liberty:paos:2003-08";"urn:oasis:names:tc:SAML:2.0:profiles:SSO:ecp"`
	samlSuccess     = "urn:oasis:names:tc:SAML:2.0:status:Success"
)

// ecpEnvelope captures the parts of an ECP SOAP envelope the flow needs.
// The body's inner XML is kept verbatim so it can be relayed unchanged.
type ecpEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Header  struct {
		Request struct {
			ResponseConsumerURL string `xml:"responseConsumerURL,attr"`
		} `xml:"Request"`
		Response struct {
			AssertionConsumerServiceURL string `xml:"AssertionConsumerServiceURL,attr"`
		} `xml:"Response"`
		RelayState string `xml:"RelayState"`
	} `xml:"Header"`
	Body struct {
		Inner    []byte `xml:",innerxml"`
		Response struct {
			Status struct {
				StatusCode struct {
					Value string `xml:"Value,attr"`
				} `xml:"StatusCode"`
			} `xml:"Status"`
		} `xml:"Response"`
	} `xml:"Body"`
}

func (c *Client) federationURL() string {
	return c.authURL + "/OS-FEDERATION/identity_providers/" + c.provider + "/protocols/mapped/auth"
}

// AuthenticatePassword performs the SAML2 ECP password exchange and
// returns an account-level session. A rejected password surfaces as the
// identity provider refusing the credentials; an account unknown to the
// provider surfaces as a failed SAML status. Both map to
// archive.ErrAuthentication with distinct messages.
func (c *Client) AuthenticatePassword(ctx context.Context, username, password string) (*archive.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	// The service provider tracks the exchange with a session cookie,
	// so all four legs share one jar.
	client := &http.Client{Jar: jar, Timeout: c.client.Timeout}
	spURL := c.federationURL()

	// Leg 1: ask the service provider for a SAML authentication request.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building federation request: %w", err)
	}
	req.Header.Set("Accept", paosAccept)
	req.Header.Set("PAOS", paosHeaderValue)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting identity service: %s: %w", err, archive.ErrRemoteService)
	}
	spBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("requesting federated authentication", resp, spBody)
	}
	var authnReq ecpEnvelope
	if err := xml.Unmarshal(spBody, &authnReq); err != nil {
		return nil, fmt.Errorf("decoding authentication request: %s: %w", err, archive.ErrRemoteService)
	}

	// Leg 2: forward the envelope to the identity provider with the
	// user's credentials.
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.providerURL, bytes.NewReader(spBody))
	if err != nil {
		return nil, fmt.Errorf("building identity provider request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.SetBasicAuth(username, password)
	resp, err = client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting identity provider: %s: %w", err, archive.ErrRemoteService)
	}
	idpBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("identity provider rejected the password for %s: %w", username, archive.ErrAuthentication)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("authenticating against identity provider", resp, idpBody)
	}
	var idpResp ecpEnvelope
	if err := xml.Unmarshal(idpBody, &idpResp); err != nil {
		return nil, fmt.Errorf("decoding identity provider response: %s: %w", err, archive.ErrRemoteService)
	}
	if status := idpResp.Body.Response.Status.StatusCode.Value; status != samlSuccess {
		return nil, fmt.Errorf("identity provider rejected account %s (status %s): %w", username, status, archive.ErrAuthentication)
	}
	// The ECP profile requires the consumer URLs to match; a mismatch
	// means the response is not meant for the provider we asked.
	if idpResp.Header.Response.AssertionConsumerServiceURL != authnReq.Header.Request.ResponseConsumerURL {
		return nil, fmt.Errorf("assertion consumer URL mismatch (%s != %s): %w",
			idpResp.Header.Response.AssertionConsumerServiceURL,
			authnReq.Header.Request.ResponseConsumerURL,
			archive.ErrRemoteService)
	}

	// Leg 3: relay the assertion back to the service provider with the
	// relay state from leg 1 restored.
	envelope := buildAuthnResponse(authnReq.Header.RelayState, idpResp.Body.Inner)
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, idpResp.Header.Response.AssertionConsumerServiceURL, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("building assertion relay request: %w", err)
	}
	req.Header.Set("Content-Type", paosContentType)
	resp, err = client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relaying assertion: %s: %w", err, archive.ErrRemoteService)
	}
	relayBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, statusErr("relaying assertion", resp, relayBody)
	}

	// Leg 4: the session cookie now authenticates us; fetch the
	// federation token.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, spURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err = client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching federation token: %s: %w", err, archive.ErrRemoteService)
	}
	tokenBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, statusErr("fetching federation token", resp, tokenBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(tokenBody, &tr); err != nil {
		return nil, fmt.Errorf("decoding federation token: %s: %w", err, archive.ErrRemoteService)
	}
	c.logger.Debug("federated login complete", "user", username)
	return &archive.Session{
		Token:     resp.Header.Get(subjectTokenHeader),
		UserID:    tr.Token.User.ID,
		ExpiresAt: tr.Token.ExpiresAt,
	}, nil
}

// buildAuthnResponse wraps the identity provider's response body in a
// fresh envelope whose header carries the service provider's relay
// state, as the ECP profile requires.
func buildAuthnResponse(relayState string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString(`<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Header>`)
	b.WriteString(`<ecp:RelayState xmlns:ecp="urn:oasis:names:tc:SAML:2.0:profiles:SSO:ecp" S:actor="http://schemas.xmlsoap.org/soap/actor/next" S:mustUnderstand="1">`)
	xml.EscapeText(&b, []byte(relayState))
	b.WriteString(`</ecp:RelayState></S:Header><S:Body>`)
	b.Write(body)
	b.WriteString(`</S:Body></S:Envelope>`)
	return b.Bytes()
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %s: %w", resp.Request.URL, err, archive.ErrRemoteService)
	}
	return body, nil
}
