package tibber

import (
	"encoding/json"
	"strings"
	"time"
)

// HomeInfo describes a Tibber home.
type HomeInfo struct {
	ID       string
	Name     string
	Address  string
	Currency string
}

// HourlyConsumption is one node of the hourly consumption history.
// Nil fields were null in the response.
type HourlyConsumption struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Consumption *float64  `json:"consumption"`
	UnitPrice   *float64  `json:"unitPrice"`
	Cost        *float64  `json:"cost"`
}

// PricePoint is one hourly total price from the price info.
type PricePoint struct {
	Total    float64 `json:"total"`
	StartsAt string  `json:"startsAt"`
}

// GridPriceEntry is one hourly grid tariff entry.
type GridPriceEntry struct {
	Time      time.Time `json:"time"`
	GridPrice float64   `json:"gridPrice"`
}

// GridPriceResponse is the app API response with grid tariffs per home.
type GridPriceResponse struct {
	Me struct {
		Homes []struct {
			ID           string `json:"id"`
			Subscription *struct {
				PriceRating struct {
					Hourly struct {
						Entries []GridPriceEntry `json:"entries"`
					} `json:"hourly"`
				} `json:"priceRating"`
			} `json:"subscription"`
		} `json:"homes"`
	} `json:"me"`
}

// ForHome returns the grid tariff entries of homeID. ok is false when the
// home is not in the response.
func (r *GridPriceResponse) ForHome(homeID string) ([]GridPriceEntry, bool) {
	if r == nil {
		return nil, false
	}
	for _, h := range r.Me.Homes {
		if h.ID != homeID {
			continue
		}
		if h.Subscription == nil {
			return nil, true
		}
		return h.Subscription.PriceRating.Hourly.Entries, true
	}
	return nil, false
}

// GraphQLError carries the messages of a GraphQL errors array.
type GraphQLError struct {
	Messages []string
	Codes    []string
}

func (e *GraphQLError) Error() string {
	return "tibber: graphql: " + strings.Join(e.Messages, "; ")
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

type historicResponse struct {
	Viewer struct {
		Home struct {
			Consumption *struct {
				Nodes []HourlyConsumption `json:"nodes"`
			} `json:"consumption"`
		} `json:"home"`
	} `json:"viewer"`
}

type priceInfoResponse struct {
	Viewer struct {
		Home homeNode `json:"home"`
	} `json:"viewer"`
}

type homesResponse struct {
	Viewer struct {
		Homes []homeNode `json:"homes"`
	} `json:"viewer"`
}

type homeNode struct {
	ID          string `json:"id"`
	AppNickname string `json:"appNickname"`
	Address     *struct {
		Address1 string `json:"address1"`
	} `json:"address"`
	Features *struct {
		RealTimeConsumptionEnabled bool `json:"realTimeConsumptionEnabled"`
	} `json:"features"`
	CurrentSubscription *struct {
		PriceInfo *struct {
			Current *struct {
				Currency string `json:"currency"`
			} `json:"current"`
			Today    []PricePoint `json:"today"`
			Tomorrow []PricePoint `json:"tomorrow"`
		} `json:"priceInfo"`
	} `json:"currentSubscription"`
}

func (n homeNode) info() HomeInfo {
	info := HomeInfo{ID: n.ID, Name: n.AppNickname}
	if n.Address != nil {
		info.Address = n.Address.Address1
		if info.Name == "" {
			info.Name = n.Address.Address1
		}
	}
	if n.CurrentSubscription != nil && n.CurrentSubscription.PriceInfo != nil &&
		n.CurrentSubscription.PriceInfo.Current != nil {
		info.Currency = n.CurrentSubscription.PriceInfo.Current.Currency
	}
	return info
}

type loginResponse struct {
	Token string `json:"token"`
}
