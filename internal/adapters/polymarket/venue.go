package polymarket

// venue.go — envío de órdenes firmadas al CLOB.
//
// Implementa ports.OrderSubmitter. Cada request autenticado lleva headers
// L2: HMAC-SHA256 del timestamp+método+path+body con el secret del API key.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parlayhub/parlayd/internal/domain"
)

const orderPath = "/order"

// Credentials son las credenciales L2 del CLOB API.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
	Address    string
}

// VenueClient envía órdenes firmadas al CLOB con autenticación L2.
type VenueClient struct {
	client *Client
	creds  Credentials
}

// NewVenueClient crea el submitter sobre un Client base existente.
func NewVenueClient(client *Client, creds Credentials) *VenueClient {
	return &VenueClient{client: client, creds: creds}
}

// venueOrderRequest es el body del POST /order.
type venueOrderRequest struct {
	Order     venueOrderBody `json:"order"`
	Owner     string         `json:"owner"`
	OrderType string         `json:"orderType"`
}

type venueOrderBody struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type venueOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

// SubmitOrder envía una orden firmada y devuelve el resultado normalizado.
func (vc *VenueClient) SubmitOrder(ctx context.Context, order domain.SignedOrder) (domain.VenueOrderResult, error) {
	body := venueOrderRequest{
		Order: venueOrderBody{
			Salt:          order.Salt,
			Maker:         order.Maker,
			Signer:        order.Maker,
			TokenID:       order.Market,
			MakerAmount:   order.MakerAmount,
			TakerAmount:   order.TakerAmount,
			Expiration:    strconv.FormatInt(order.Expiration, 10),
			Nonce:         strconv.FormatInt(order.Nonce, 10),
			Side:          string(order.Side),
			SignatureType: order.SignatureType,
			Signature:     order.Signature,
		},
		Owner:     vc.creds.APIKey,
		OrderType: "GTC",
	}

	raw, err := vc.doL2(ctx, http.MethodPost, orderPath, body)
	if err != nil {
		return domain.VenueOrderResult{}, fmt.Errorf("venue.SubmitOrder: %w", err)
	}

	var resp venueOrderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.VenueOrderResult{}, fmt.Errorf("venue.SubmitOrder: decode: %w", err)
	}

	if !resp.Success || resp.ErrorMsg != "" {
		return domain.VenueOrderResult{}, fmt.Errorf("venue.SubmitOrder: clob error: %s", resp.ErrorMsg)
	}

	return domain.VenueOrderResult{
		OrderID: resp.OrderID,
		Status:  resp.Status,
		Raw:     string(raw),
	}, nil
}

// l2Headers genera los headers autenticados para un request L2.
func (vc *VenueClient) l2Headers(method, path, body string) (map[string]string, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(vc.creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    vc.creds.Address,
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    vc.creds.APIKey,
		"POLY_PASSPHRASE": vc.creds.Passphrase,
	}, nil
}

// doL2 ejecuta un request L2 con rate limiting y retries. Los headers HMAC
// se regeneran en cada intento para que el timestamp siga fresco.
func (vc *VenueClient) doL2(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyStr string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}

	fullURL := vc.client.clobBase + path

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := vc.client.bookLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		headers, err := vc.l2Headers(method, path, bodyStr)
		if err != nil {
			return nil, err
		}

		var bodyReader io.Reader
		if bodyStr != "" {
			bodyReader = strings.NewReader(bodyStr)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := vc.client.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			vc.client.sleep(ctx, attempt)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			vc.client.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)
			}
			vc.client.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, respBody)
		}

		return respBody, nil
	}
	return nil, fmt.Errorf("exhausted %d retries", maxRetries)
}
