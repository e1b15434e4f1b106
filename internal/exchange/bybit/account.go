package bybit

import (
	"context"
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// AccountType represents different account types in Bybit
type AccountType string

const (
	AccountTypeUnified AccountType = "UNIFIED"
	AccountTypeSpot    AccountType = "SPOT"
	AccountTypeFund    AccountType = "FUND"
)

// Balance represents a coin balance in the account
type Balance struct {
	Coin             string  `json:"coin"`
	WalletBalance    float64 `json:"walletBalance"`
	AvailableToTrade float64 `json:"availableToTrade"`
	Locked           float64 `json:"locked"`
	USDValue         float64 `json:"usdValue"`
}

// AccountInfo represents the wallet of one account type
type AccountInfo struct {
	AccountType           string    `json:"accountType"`
	TotalEquity           float64   `json:"totalEquity"`
	TotalAvailableBalance float64   `json:"totalAvailableBalance"`
	Coin                  []Balance `json:"coin"`
}

// GetAccountBalance retrieves account balance information
func (c *Client) GetAccountBalance(ctx context.Context, accountType AccountType, coins ...string) (*AccountInfo, error) {
	params := map[string]interface{}{
		"accountType": string(accountType),
	}
	if len(coins) > 0 {
		params["coin"] = strings.Join(coins, ",")
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account balance: %w", err)
	}

	accountInfo, err := parseAccountBalance(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account balance response: %w", err)
	}
	return accountInfo, nil
}

func parseAccountBalance(response interface{}) (*AccountInfo, error) {
	var walletResult struct {
		List []struct {
			AccountType           string `json:"accountType"`
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			Coin                  []struct {
				Coin             string `json:"coin"`
				UsdValue         string `json:"usdValue"`
				WalletBalance    string `json:"walletBalance"`
				AvailableToTrade string `json:"availableToTrade"`
				TotalOrderIM     string `json:"totalOrderIM"`
				TotalPositionIM  string `json:"totalPositionIM"`
				Locked           string `json:"locked"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := decodeResult(response, &walletResult); err != nil {
		return nil, err
	}
	if len(walletResult.List) == 0 {
		return nil, fmt.Errorf("no account data found")
	}

	account := walletResult.List[0]
	equity, err := parseNumber(account.TotalEquity)
	if err != nil {
		return nil, err
	}
	available, _ := parseNumber(account.TotalAvailableBalance)

	info := &AccountInfo{
		AccountType:           account.AccountType,
		TotalEquity:           equity,
		TotalAvailableBalance: available,
		Coin:                  make([]Balance, 0, len(account.Coin)),
	}
	for _, coin := range account.Coin {
		wallet, err := parseNumber(coin.WalletBalance)
		if err != nil {
			return nil, fmt.Errorf("coin %s: %w", coin.Coin, err)
		}
		tradable, _ := parseNumber(coin.AvailableToTrade)
		usd, _ := parseNumber(coin.UsdValue)
		orderIM, _ := parseNumber(coin.TotalOrderIM)
		positionIM, _ := parseNumber(coin.TotalPositionIM)
		locked, _ := parseNumber(coin.Locked)

		info.Coin = append(info.Coin, Balance{
			Coin:             coin.Coin,
			WalletBalance:    wallet,
			AvailableToTrade: tradable,
			Locked:           locked + orderIM + positionIM,
			USDValue:         usd,
		})
	}
	return info, nil
}

// Portfolio converts the wallet into a portfolio snapshot. The quote coin is
// treated as cash and every other coin as a position keyed by its symbol.
// Cost basis is unknown to the wallet endpoint and left at zero.
func (a *AccountInfo) Portfolio(quoteCoin string) types.PortfolioState {
	state := types.PortfolioState{
		TotalEquity: a.TotalEquity,
		Positions:   make(map[string]types.Position),
	}
	var sum float64
	for _, coin := range a.Coin {
		sum += coin.USDValue
		if strings.EqualFold(coin.Coin, quoteCoin) {
			state.CashBalance = coin.WalletBalance
			continue
		}
		if coin.WalletBalance == 0 {
			continue
		}
		state.Positions[strings.ToUpper(coin.Coin)] = types.Position{Quantity: coin.WalletBalance}
	}
	if state.TotalEquity <= 0 {
		state.TotalEquity = sum
	}
	return state
}
