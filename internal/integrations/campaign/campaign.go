package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/ironbank/ironbank/internal/config"
)

// WorldState is one sample of the campaign world: the day counter and the
// volatility scalar reduced from the diplomacy feed.
type WorldState struct {
	Day        int     `json:"day"`
	Volatility float64 `json:"volatility"`
	Realms     int     `json:"realms"`
	Wars       int     `json:"wars"`
}

// OwnerState is the host-side view of one depositor.
type OwnerState struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	PurseBalance int64   `json:"purse_balance"`
	Standing     float64 `json:"standing"`
}

// Client handles integration with the campaign host
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new campaign client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.CampaignURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// WorldState fetches the diplomacy feed and reduces it to a volatility
// scalar. The pairwise war scan happens here so the core only ever sees an
// already-sampled value.
func (c *Client) WorldState() (WorldState, error) {
	body, err := c.get("/world/diplomacy")
	if err != nil {
		return WorldState{}, err
	}

	state, err := parseWorldState(body)
	if err != nil {
		return WorldState{}, err
	}

	c.log.Debugf("World state: day %d, %d realms, %d wars, volatility %.4f",
		state.Day, state.Realms, state.Wars, state.Volatility)
	return state, nil
}

// parseWorldState parses the diplomacy XML into a WorldState.
func parseWorldState(rawBody []byte) (WorldState, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return WorldState{}, fmt.Errorf("failed to parse XML: %v", err)
	}

	dayElement := doc.FindElement("//World/Day")
	if dayElement == nil {
		return WorldState{}, fmt.Errorf("day counter not found in XML")
	}
	day, err := strconv.Atoi(dayElement.Text())
	if err != nil {
		return WorldState{}, fmt.Errorf("failed to parse day counter: %v", err)
	}

	realms := len(doc.FindElements("//World/Realms/Realm"))
	wars := len(doc.FindElements("//World/Wars/War"))

	return WorldState{
		Day:        day,
		Volatility: VolatilityFrom(realms, wars),
		Realms:     realms,
		Wars:       wars,
	}, nil
}

// VolatilityFrom reduces a diplomacy snapshot to the volatility scalar:
// each unordered warring realm pair counted twice against the triangular
// denominator n*(n+1), self-pairs excluded. Always strictly below 1.
func VolatilityFrom(realms, wars int) float64 {
	if realms == 0 {
		return 0
	}
	n := float64(realms)
	return float64(2*wars) / (n * (n + 1))
}

// OwnerState retrieves the purse balance and standing score of one owner
func (c *Client) OwnerState(ownerID string) (OwnerState, error) {
	body, err := c.get("/heroes/" + ownerID)
	if err != nil {
		return OwnerState{}, err
	}

	var state OwnerState
	if err := json.Unmarshal(body, &state); err != nil {
		return OwnerState{}, fmt.Errorf("failed to decode owner state: %v", err)
	}
	return state, nil
}

// CreditPurse applies a signed delta to the owner's purse
func (c *Client) CreditPurse(ownerID string, delta int64) error {
	return c.post("/heroes/"+ownerID+"/purse", map[string]int64{"delta": delta})
}

// ApplyRenown applies a signed standing delta to the owner's clan
func (c *Client) ApplyRenown(ownerID string, delta float64) error {
	return c.post("/heroes/"+ownerID+"/renown", map[string]float64{"delta": delta})
}

// Notify sends a user-facing notification carrying a message and a signed amount
func (c *Client) Notify(ownerID, message string, amount int64) error {
	payload := map[string]interface{}{"message": message, "amount": amount}
	return c.post("/heroes/"+ownerID+"/notifications", payload)
}

func (c *Client) get(path string) ([]byte, error) {
	resp, err := c.client.Get(c.url + path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	return body, nil
}

func (c *Client) post(path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %v", err)
	}

	resp, err := c.client.Post(c.url+path, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
