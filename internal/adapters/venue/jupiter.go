package venue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/alejandrodnm/solbot/internal/domain"
	"github.com/alejandrodnm/solbot/internal/ports"
)

const (
	solMint          = "So11111111111111111111111111111111111111112"
	lamportsPerSOL   = 1e9
	defaultQuoteURL  = "https://api.jup.ag/swap/v1/quote"
	defaultSwapURL   = "https://api.jup.ag/swap/v1/swap"
	defaultRPCURL    = "https://api.mainnet-beta.solana.com"
	defaultSendTries = 3
	confirmPolls     = 10
	confirmDelay     = 2 * time.Second
)

// JupiterConfig holds the endpoints and retry budget for the real venue.
type JupiterConfig struct {
	QuoteURL    string
	SwapURL     string
	RPCURL      string
	SendRetries int
	HTTPTimeout time.Duration
}

// Jupiter executes swaps for real: quote through the Jupiter aggregator,
// sign locally, submit over Solana RPC, and poll for confirmation. It never
// degrades to simulation — every failure surfaces as *domain.ExecutionFailure
// with the stage that broke.
type Jupiter struct {
	cfg    JupiterConfig
	wallet solana.PrivateKey
	rpc    *rpc.Client
	http   *http.Client
}

var _ ports.ExecutionVenue = (*Jupiter)(nil)

func NewJupiter(cfg JupiterConfig, wallet solana.PrivateKey) *Jupiter {
	if cfg.QuoteURL == "" {
		cfg.QuoteURL = defaultQuoteURL
	}
	if cfg.SwapURL == "" {
		cfg.SwapURL = defaultSwapURL
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = defaultRPCURL
	}
	if cfg.SendRetries <= 0 {
		cfg.SendRetries = defaultSendTries
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &Jupiter{
		cfg:    cfg,
		wallet: wallet,
		rpc:    rpc.New(cfg.RPCURL),
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// SubmitSwap runs the full quote → swap → sign → submit → confirm pipeline.
func (v *Jupiter) SubmitSwap(ctx context.Context, req domain.SwapRequest) (domain.Swap, error) {
	fail := func(stage string, err error) (domain.Swap, error) {
		return domain.Swap{}, &domain.ExecutionFailure{
			ContractAddress: req.ContractAddress,
			Action:          req.Action,
			AmountBase:      req.AmountBase,
			Stage:           stage,
			Err:             err,
		}
	}

	inputMint, outputMint, amountRaw, err := v.resolveLeg(ctx, req)
	if err != nil {
		return fail("quote", err)
	}

	quote, err := v.quote(ctx, inputMint, outputMint, amountRaw, req.SlippageBps)
	if err != nil {
		return fail("quote", err)
	}

	execPrice, err := v.executionPrice(ctx, req, quote)
	if err != nil {
		return fail("quote", err)
	}

	txBase64, err := v.buildSwap(ctx, quote.raw)
	if err != nil {
		return fail("swap", err)
	}

	txBytes, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return fail("swap", fmt.Errorf("decode swap tx: %w", err))
	}
	tx, err := solana.TransactionFromBytes(txBytes)
	if err != nil {
		return fail("sign", fmt.Errorf("parse swap tx: %w", err))
	}
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(v.wallet.PublicKey()) {
			return &v.wallet
		}
		return nil
	}); err != nil {
		return fail("sign", err)
	}

	sig, err := v.sendWithRetry(ctx, tx)
	if err != nil {
		return fail("submit", err)
	}

	if err := v.confirm(ctx, sig); err != nil {
		return fail("confirm", err)
	}

	slog.Info("live: swap confirmed",
		"action", req.Action,
		"address", req.ContractAddress,
		"amount_sol", req.AmountBase,
		"price", execPrice,
		"tx", sig.String())

	return domain.Swap{TxID: sig.String(), ExecutionPrice: execPrice}, nil
}

// resolveLeg maps the request onto Jupiter's input/output mints. BUY spends
// AmountBase in SOL; SELL disposes of SellFraction of the live token balance.
func (v *Jupiter) resolveLeg(ctx context.Context, req domain.SwapRequest) (inputMint, outputMint string, amountRaw uint64, err error) {
	switch req.Action {
	case domain.ActionBuy:
		return solMint, req.ContractAddress, uint64(req.AmountBase * lamportsPerSOL), nil
	case domain.ActionSell:
		balance, err := v.tokenBalance(ctx, req.ContractAddress)
		if err != nil {
			return "", "", 0, err
		}
		if balance == 0 {
			return "", "", 0, fmt.Errorf("zero token balance for %s", req.ContractAddress)
		}
		fraction := req.SellFraction
		if fraction <= 0 || fraction > 1 {
			fraction = 1
		}
		return req.ContractAddress, solMint, uint64(float64(balance) * fraction), nil
	default:
		return "", "", 0, fmt.Errorf("unknown action %q", req.Action)
	}
}

type quoteResult struct {
	raw       json.RawMessage
	inAmount  uint64
	outAmount uint64
}

func (v *Jupiter) quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*quoteResult, error) {
	url := fmt.Sprintf("%s?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d&swapMode=ExactIn",
		v.cfg.QuoteURL, inputMint, outputMint, amount, slippageBps)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		InAmount  string `json:"inAmount"`
		OutAmount string `json:"outAmount"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("quote error: %s", parsed.Error)
	}
	in, _ := strconv.ParseUint(parsed.InAmount, 10, 64)
	out, _ := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if in == 0 || out == 0 {
		return nil, fmt.Errorf("quote has zero amounts, no route or no liquidity")
	}
	return &quoteResult{raw: body, inAmount: in, outAmount: out}, nil
}

// executionPrice derives the realized SOL per token from the quote legs using
// the mint's on-chain decimals.
func (v *Jupiter) executionPrice(ctx context.Context, req domain.SwapRequest, q *quoteResult) (float64, error) {
	decimals, err := v.mintDecimals(ctx, req.ContractAddress)
	if err != nil {
		return 0, err
	}
	unit := math.Pow10(int(decimals))
	switch req.Action {
	case domain.ActionBuy:
		tokens := float64(q.outAmount) / unit
		if tokens == 0 {
			return 0, fmt.Errorf("quote returned zero tokens out")
		}
		return (float64(q.inAmount) / lamportsPerSOL) / tokens, nil
	default:
		tokens := float64(q.inAmount) / unit
		if tokens == 0 {
			return 0, fmt.Errorf("quote consumed zero tokens")
		}
		return (float64(q.outAmount) / lamportsPerSOL) / tokens, nil
	}
}

func (v *Jupiter) buildSwap(ctx context.Context, quote json.RawMessage) (string, error) {
	body, err := json.Marshal(map[string]any{
		"quoteResponse":           quote,
		"userPublicKey":           v.wallet.PublicKey().String(),
		"wrapAndUnwrapSol":        true,
		"dynamicComputeUnitLimit": true,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.SwapURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("swap status %d: %s", resp.StatusCode, msg)
	}

	var swap struct {
		SwapTransaction string `json:"swapTransaction"`
		Error           string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&swap); err != nil {
		return "", fmt.Errorf("decode swap: %w", err)
	}
	if swap.Error != "" {
		return "", fmt.Errorf("swap error: %s", swap.Error)
	}
	if swap.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing transaction")
	}
	return swap.SwapTransaction, nil
}

func (v *Jupiter) sendWithRetry(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var lastErr error
	for i := 0; i < v.cfg.SendRetries; i++ {
		sig, err := v.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentProcessed,
		})
		if err == nil {
			return sig, nil
		}
		lastErr = err
		slog.Warn("live: send attempt failed", "attempt", i+1, "err", err)
		if i < v.cfg.SendRetries-1 {
			select {
			case <-ctx.Done():
				return solana.Signature{}, ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return solana.Signature{}, lastErr
}

func (v *Jupiter) confirm(ctx context.Context, sig solana.Signature) error {
	for i := 0; i < confirmPolls; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmDelay):
		}

		statuses, err := v.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			continue
		}
		if len(statuses.Value) == 0 || statuses.Value[0] == nil {
			continue
		}
		status := statuses.Value[0]
		if status.Err != nil {
			return fmt.Errorf("tx %s failed on chain: %v", sig, status.Err)
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return nil
		}
	}
	return fmt.Errorf("tx %s not confirmed after %d polls", sig, confirmPolls)
}

func (v *Jupiter) tokenBalance(ctx context.Context, mint string) (uint64, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("bad mint %s: %w", mint, err)
	}
	accounts, err := v.rpc.GetTokenAccountsByOwner(ctx, v.wallet.PublicKey(),
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed},
	)
	if err != nil {
		return 0, fmt.Errorf("get token accounts: %w", err)
	}
	var total uint64
	for _, acc := range accounts.Value {
		bal, err := v.rpc.GetTokenAccountBalance(ctx, acc.Pubkey, rpc.CommitmentConfirmed)
		if err != nil || bal.Value == nil {
			continue
		}
		amount, err := strconv.ParseUint(bal.Value.Amount, 10, 64)
		if err != nil {
			continue
		}
		total += amount
	}
	return total, nil
}

func (v *Jupiter) mintDecimals(ctx context.Context, mint string) (uint8, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("bad mint %s: %w", mint, err)
	}
	supply, err := v.rpc.GetTokenSupply(ctx, mintKey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get token supply: %w", err)
	}
	if supply.Value == nil {
		return 0, fmt.Errorf("empty token supply for %s", mint)
	}
	return supply.Value.Decimals, nil
}
