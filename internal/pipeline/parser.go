package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// maxPromptChars bounds how much statement text goes into one model
// request.
const maxPromptChars = 3000

// defaultRequestTimeout bounds the single outbound model call.
const defaultRequestTimeout = 60 * time.Second

// ErrRateLimited is wrapped by ExtractionClient implementations when the
// service reports a rate-limit, quota or billing condition. The parser
// downgrades this class of failure to mock output instead of propagating
// it.
var ErrRateLimited = errors.New("extraction service rate limited")

// ExtractionError reports that the extraction service's response could not
// be turned into a transaction list. It is the server-facing failure
// class.
type ExtractionError struct {
	Msg string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExtractionClient is the capability the parser needs from the external
// model service: statement text in, raw response text out. Implementations
// wrap ErrRateLimited into errors caused by quota exhaustion.
type ExtractionClient interface {
	ExtractTransactions(ctx context.Context, system, prompt string) (string, error)
}

// Source tags where a parse result's transactions came from.
type Source string

const (
	// SourceModel means the transactions were extracted by the model.
	SourceModel Source = "model"
	// SourceMock means the pipeline degraded to the fixed demo set.
	SourceMock Source = "mock"
)

// Result is the outcome of one statement parse. When Source is SourceMock,
// Reason says why the pipeline degraded.
type Result struct {
	Transactions []Transaction
	Source       Source
	Reason       string
}

// Parser orchestrates one statement's extraction: bound the text, call the
// model once, normalize the response shape, and repair every candidate.
// A nil client puts the parser in demo mode permanently.
//
// Parser holds no mutable state; concurrent Parse calls are independent.
type Parser struct {
	client  ExtractionClient
	timeout time.Duration
	log     zerolog.Logger
}

// NewParser builds a parser around the given extraction client. Pass a nil
// client when no service credential is configured; every Parse call then
// returns mock output. A zero timeout selects the default.
func NewParser(client ExtractionClient, timeout time.Duration, log zerolog.Logger) *Parser {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Parser{client: client, timeout: timeout, log: log}
}

const systemPrompt = "You are a financial data extraction expert. Extract transactions from bank statements " +
	"and return only valid JSON. Always return an array, even if it's empty. Ensure dates are in " +
	"YYYY-MM-DD format with valid month (01-12) and day (01-31) values."

func buildPrompt(text string) string {
	if len(text) > maxPromptChars {
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := maxPromptChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	return "Analyze this bank statement text and extract all transactions.\n" +
		"Return ONLY a JSON array of transactions with these fields:\n" +
		"- date (YYYY-MM-DD format, infer year if missing)\n" +
		"- amount (positive for income, negative for expenses)\n" +
		"- description (clean transaction description)\n" +
		"- merchant (where the transaction occurred)\n" +
		"- category (food, utilities, entertainment, transportation, healthcare, shopping, income, transfer, other)\n" +
		"- type (\"income\" or \"expense\" based on amount)\n\n" +
		"Important:\n" +
		"1. Date must be in YYYY-MM-DD format only\n" +
		"2. Month must be between 01-12\n" +
		"3. Day must be between 01-31\n" +
		"4. Return valid JSON only\n\n" +
		"If a field cannot be determined, use a reasonable default.\n\n" +
		"Statement text: " + text + "\n\n" +
		"JSON response:\n"
}

// Parse runs the full extraction pipeline over statement text and returns
// a repaired transaction list. It never returns a malformed transaction;
// every record has been through Repair. Errors are always
// *ExtractionError. Rate-limit and quota failures do not error: they
// degrade to the mock set with the reason recorded on the result.
func (p *Parser) Parse(ctx context.Context, text string) (*Result, error) {
	if p.client == nil {
		p.log.Info().Msg("extraction service not configured, using mock data")
		return p.mockResult("extraction service not configured"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.client.ExtractTransactions(ctx, systemPrompt, buildPrompt(text))
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			p.log.Warn().Err(err).Msg("extraction service exhausted, using mock data")
			return p.mockResult("extraction service rate limited"), nil
		}
		return nil, &ExtractionError{Msg: "extraction request failed", Err: err}
	}

	var parsed any
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &parsed); err != nil {
		return nil, &ExtractionError{Msg: "invalid JSON response from extraction service", Err: err}
	}

	candidates, err := transactionsArray(parsed)
	if err != nil {
		return nil, err
	}

	txs := make([]Transaction, 0, len(candidates))
	for _, item := range candidates {
		obj, _ := item.(map[string]any)
		txs = append(txs, Repair(Candidate(obj)))
	}

	p.log.Info().Int("count", len(txs)).Msg("statement parsed")
	return &Result{Transactions: txs, Source: SourceModel}, nil
}

func (p *Parser) mockResult(reason string) *Result {
	return &Result{
		Transactions: MockTransactions(),
		Source:       SourceMock,
		Reason:       reason,
	}
}

// transactionsArray accepts the two response shapes the service is allowed
// to produce: a bare array of candidates, or an object wrapping one under
// "transactions".
func transactionsArray(parsed any) ([]any, error) {
	switch v := parsed.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if list, ok := v["transactions"].([]any); ok {
			return list, nil
		}
	}
	return nil, &ExtractionError{Msg: "no transactions array found in extraction response"}
}
