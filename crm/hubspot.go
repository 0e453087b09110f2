package crm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/danielmdadu/leadagent/lead"
	leadschema "github.com/danielmdadu/leadagent/schema"
)

const defaultBaseURL = "https://api.hubapi.com"

// productByType maps machinery types onto the product names registered in
// HubSpot.
var productByType = map[leadschema.MachineryType]string{
	leadschema.MachineryWelder:      "Soldadoras Shindaiwa",
	leadschema.MachineryPlatform:    "Plataformas de elevación LGMG",
	leadschema.MachineryLightTower:  "Torres de iluminación Trime",
	leadschema.MachineryGenerator:   "Generadores",
	leadschema.MachineryCompressor:  "Compresores eléctricos Airman",
	leadschema.MachineryForklift:    "Montacargas LGMG",
	leadschema.MachineryTelehandler: "Manipulador LGMG",
	leadschema.MachineryCompactor:   "Apisonador Sakai",
	leadschema.MachineryBreaker:     "Martillos neumáticos Toku",
}

// knownSectors are the company-sector options registered in HubSpot.
// Anything else maps to the first entry.
var knownSectors = []string{
	"Venta de maquinaria", "Renta de maquinaria", "Distribuidor",
	"Comercializadora", "Minería", "Construcción", "Otro",
}

var knownStates = []string{
	"Aguascalientes", "Baja California", "Baja California Sur", "Campeche",
	"Chiapas", "Chihuahua", "Ciudad de México", "Coahuila", "Colima",
	"Durango", "Estado de México", "Guanajuato", "Guerrero", "Hidalgo",
	"Jalisco", "Michoacán", "Morelos", "Nayarit", "Nuevo León", "Oaxaca",
	"Puebla", "Querétaro", "Quintana Roo", "San Luis Potosí", "Sinaloa",
	"Sonora", "Tabasco", "Tamaulipas", "Tlaxcala", "Veracruz", "Yucatán",
	"Zacatecas",
}

// HubSpot talks to the contacts API. Expired access tokens are refreshed
// once per failing request using the OAuth refresh token.
type HubSpot struct {
	client       *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	refreshToken string
	log          *slog.Logger

	mu          sync.Mutex
	accessToken string
}

// HubSpotConfig carries the OAuth credentials. BaseURL is overridable for
// tests.
type HubSpotConfig struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	BaseURL      string
}

func NewHubSpot(cfg HubSpotConfig, logger *slog.Logger) *HubSpot {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &HubSpot{
		client:       &http.Client{Timeout: 15 * time.Second},
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshToken: cfg.RefreshToken,
		accessToken:  cfg.AccessToken,
		log:          logger,
	}
}

func (h *HubSpot) CreateContact(ctx context.Context, waID, phone string) (string, error) {
	body := map[string]any{"properties": map[string]string{
		"id_conversacion_bot": "conv_" + waID,
		"phone":               phone,
		"lifecyclestage":      "lead",
	}}
	var out struct {
		ID string `json:"id"`
	}
	if err := h.doJSON(ctx, http.MethodPost, "/crm/v3/objects/contacts", body, &out); err != nil {
		return "", fmt.Errorf("create contact: %w", err)
	}
	h.log.Info("crm contact created", "contact_id", out.ID)
	return out.ID, nil
}

func (h *HubSpot) UpdateContact(ctx context.Context, contactID string, r *lead.Record, u lead.Update) error {
	props := buildProperties(r, u)
	if len(props) == 0 {
		return nil
	}
	body := map[string]any{"properties": props}
	path := "/crm/v3/objects/contacts/" + url.PathEscape(contactID)
	if err := h.doJSON(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update contact %s: %w", contactID, err)
	}
	return nil
}

func (h *HubSpot) DeleteContact(ctx context.Context, contactID string) error {
	path := "/crm/v3/objects/contacts/" + url.PathEscape(contactID)
	if err := h.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete contact %s: %w", contactID, err)
	}
	return nil
}

// buildProperties translates this turn's update into HubSpot contact
// properties, reading merged values from the record.
func buildProperties(r *lead.Record, u lead.Update) map[string]string {
	props := map[string]string{}
	for key, value := range u.Fields {
		switch key {
		case leadschema.FieldName, leadschema.FieldSurname:
			props["firstname"] = r.Name
		case leadschema.FieldMachineryType:
			if product, ok := productByType[r.MachineryType]; ok {
				props["en_que_producto_estas_interesado_"] = product
			}
		case leadschema.FieldCompanyName:
			props["company"] = value
		case leadschema.FieldCompanySector:
			props["giro_de_la_empresa_"] = pickKnown(value, knownSectors)
		case leadschema.FieldLocation:
			props["estado___region"] = pickKnown(value, knownStates)
		case leadschema.FieldUsage:
			props["uso_o_venta_de_maquinaria"] = value
		case leadschema.FieldWebsite:
			props["pgina_web_de_tu_negocio"] = value
		case leadschema.FieldEmail:
			props["email"] = value
		case leadschema.FieldPhone:
			props["phone"] = value
		}
	}
	if len(u.Details) > 0 {
		props["caracteristicas_de_maquinaria_de_interes"] = detailsText(r)
	}
	return props
}

func pickKnown(value string, known []string) string {
	for _, k := range known {
		if strings.EqualFold(value, k) {
			return k
		}
	}
	return known[0]
}

// detailsText renders the captured detail answers next to their questions.
func detailsText(r *lead.Record) string {
	fields := leadschema.DetailFieldsFor(r.MachineryType)
	if len(fields) == 0 {
		raw, err := sonic.MarshalString(r.MachineryDetails)
		if err != nil {
			return ""
		}
		return raw
	}
	var parts []string
	for _, f := range fields {
		if v := r.MachineryDetails[f.Name]; v != "" {
			parts = append(parts, fmt.Sprintf("%s Respuesta: %s", f.Question, v))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

// doJSON runs one API call, refreshing the access token and retrying once
// on 401.
func (h *HubSpot) doJSON(ctx context.Context, method, path string, body, out any) error {
	status, respBody, err := h.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := h.refreshAccessToken(ctx); err != nil {
			return err
		}
		if status, respBody, err = h.send(ctx, method, path, body); err != nil {
			return err
		}
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("hubspot %s %s: status %d: %s", method, path, status, respBody)
	}
	if out != nil && len(respBody) > 0 {
		return sonic.Unmarshal(respBody, out)
	}
	return nil
}

func (h *HubSpot) send(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	h.mu.Lock()
	token := h.accessToken
	h.mu.Unlock()
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (h *HubSpot) refreshAccessToken(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {h.clientID},
		"client_secret": {h.clientSecret},
		"refresh_token": {h.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/oauth/v1/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh token: status %d: %s", resp.StatusCode, respBody)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := sonic.Unmarshal(respBody, &out); err != nil {
		return err
	}
	h.mu.Lock()
	h.accessToken = out.AccessToken
	h.mu.Unlock()
	h.log.Info("hubspot access token refreshed")
	return nil
}
