package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chat-widget/internal/domain"
)

const (
	pkPrefixCompany = "COMPANY#"
	skPrefixTurn    = "TURN#"
	ttlDuration     = 30 * 24 * time.Hour // 30-day TTL
	defaultLimit    = 20
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores chat transcripts in a DynamoDB table, one item per turn,
// partitioned by company.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// companyPK returns the partition key for a company's transcript.
func companyPK(companyName string) string {
	return pkPrefixCompany + strings.ToLower(strings.TrimSpace(companyName))
}

// turnSK orders turns chronologically; the id keeps same-instant turns apart.
func turnSK(ts time.Time, id string) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

// SaveTurn persists one exchange. Turns are never overwritten.
func (c *Client) SaveTurn(ctx context.Context, turn domain.Turn) error {
	if strings.TrimSpace(turn.ID) == "" {
		return errors.New("repository: SaveTurn: turn id is required")
	}
	if strings.TrimSpace(turn.CompanyName) == "" {
		return errors.New("repository: SaveTurn: company name is required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = c.now().UTC()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                turnItem(turn, c.now().Add(ttlDuration).Unix()),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// ListTurns returns the latest turns for a company in chronological order.
func (c *Client) ListTurns(ctx context.Context, companyName string, limit int) ([]domain.Turn, error) {
	if strings.TrimSpace(companyName) == "" {
		return nil, errors.New("repository: ListTurns: company name is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: companyPK(companyName)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT keeps the most recent turns.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListTurns query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTurns unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func turnItem(turn domain.Turn, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":               &types.AttributeValueMemberS{Value: companyPK(turn.CompanyName)},
		"SK":               &types.AttributeValueMemberS{Value: turnSK(turn.CreatedAt, turn.ID)},
		"turnId":           &types.AttributeValueMemberS{Value: turn.ID},
		"companyName":      &types.AttributeValueMemberS{Value: turn.CompanyName},
		"question":         &types.AttributeValueMemberS{Value: turn.Question},
		"answer":           &types.AttributeValueMemberS{Value: turn.Answer},
		"outcome":          &types.AttributeValueMemberS{Value: string(turn.Outcome)},
		"clientElapsedMs":  &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.ClientElapsed.Milliseconds(), 10)},
		"serverResponseMs": &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.ServerResponseTime, 10)},
		"cached":           &types.AttributeValueMemberBOOL{Value: turn.Cached},
		"createdAt":        &types.AttributeValueMemberS{Value: turn.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":              &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToTurn converts a DynamoDB attribute map to a Turn.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	id, err := strAttr(item, "turnId")
	if err != nil {
		return domain.Turn{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.Turn{}, err
	}
	createdRaw, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.Turn{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("repository: parse attribute %q: %w", "createdAt", err)
	}
	company, _ := strAttr(item, "companyName") // allow empty
	answer, _ := strAttr(item, "answer")
	outcome, _ := strAttr(item, "outcome")
	clientMs, _ := intAttr(item, "clientElapsedMs")
	serverMs, _ := intAttr(item, "serverResponseMs")
	cached, _ := boolAttr(item, "cached")

	return domain.Turn{
		ID:                 id,
		CompanyName:        company,
		Question:           question,
		Answer:             answer,
		Outcome:            domain.TurnOutcome(outcome),
		ClientElapsed:      time.Duration(clientMs) * time.Millisecond,
		ServerResponseTime: serverMs,
		Cached:             cached,
		CreatedAt:          createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		return false, fmt.Errorf("repository: missing attribute %q", key)
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a bool", key)
	}
	return b.Value, nil
}
