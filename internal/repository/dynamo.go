// Package repository backs the session store and rate limiter with a
// DynamoDB table so state survives across Lambda instances. Memory-backed
// state degenerates to per-instance throttling once the platform fans out;
// this is the external shared store that restores the cross-invocation
// guarantees.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"studio-relay/internal/domain"
)

const (
	skSession = "SESSION"
	skWindow  = "WINDOW"

	// touchRetries bounds the optimistic-concurrency loop on session writes.
	touchRetries = 3
)

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store implements the usecase SessionStore and RateLimiter contracts on a
// single DynamoDB table with native TTL enabled on the "ttl" attribute.
type Store struct {
	api        dynamodbAPI
	tableName  string
	window     time.Duration
	capacity   int
	sessionTTL time.Duration
}

// New creates a Store over the given table.
func New(api dynamodbAPI, tableName string, window time.Duration, capacity int, sessionTTL time.Duration) (*Store, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if window <= 0 || capacity <= 0 || sessionTTL <= 0 {
		return nil, errors.New("repository: window, capacity and session TTL must be positive")
	}
	return &Store{api: api, tableName: tableName, window: window, capacity: capacity, sessionTTL: sessionTTL}, nil
}

func userPK(identity string) string { return "USER#" + identity }
func ratePK(identity string) string { return "RATE#" + identity }

// Allow implements the fixed-window throttle with a conditional increment,
// so concurrent invocations for the same identity cannot lose counts. A
// reset race between two invocations can grant both a fresh window; that is
// acceptable for a soft throttle.
func (s *Store) Allow(ctx context.Context, identity string, now time.Time) (bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: ratePK(identity)},
			"SK": &types.AttributeValueMemberS{Value: skWindow},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("repository: Allow get item: %w", err)
	}

	if len(out.Item) == 0 {
		return true, s.resetWindow(ctx, identity, now)
	}

	windowStart, err := timeAttr(out.Item, "windowStart")
	if err != nil {
		return false, fmt.Errorf("repository: Allow decode window: %w", err)
	}
	if now.Sub(windowStart) >= s.window {
		return true, s.resetWindow(ctx, identity, now)
	}

	count, err := intAttr(out.Item, "cnt")
	if err != nil {
		return false, fmt.Errorf("repository: Allow decode count: %w", err)
	}
	if count >= s.capacity {
		return false, nil
	}

	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: ratePK(identity)},
			"SK": &types.AttributeValueMemberS{Value: skWindow},
		},
		UpdateExpression:    aws.String("ADD cnt :one"),
		ConditionExpression: aws.String("windowStart = :ws AND cnt < :cap"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":ws":  &types.AttributeValueMemberS{Value: windowStart.UTC().Format(time.RFC3339Nano)},
			":cap": &types.AttributeValueMemberN{Value: strconv.Itoa(s.capacity)},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			// Lost the race to the last slot in the window.
			return false, nil
		}
		return false, fmt.Errorf("repository: Allow increment: %w", err)
	}
	return true, nil
}

func (s *Store) resetWindow(ctx context.Context, identity string, now time.Time) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          &types.AttributeValueMemberS{Value: ratePK(identity)},
			"SK":          &types.AttributeValueMemberS{Value: skWindow},
			"windowStart": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
			"cnt":         &types.AttributeValueMemberN{Value: "1"},
			"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.window).Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: reset window: %w", err)
	}
	return nil
}

// Touch loads, updates and conditionally writes back the session, retrying
// on version conflicts so concurrent messages from the same identity do not
// lose counter updates.
func (s *Store) Touch(ctx context.Context, identity, displayName, text string, now time.Time) (domain.Session, error) {
	for attempt := 0; attempt < touchRetries; attempt++ {
		sess, version, err := s.getSession(ctx, identity)
		if err != nil {
			return domain.Session{}, err
		}
		if sess == nil {
			sess = domain.NewSession(identity, displayName, now)
			version = 0
		} else if sess.Expired(now, s.sessionTTL) {
			// Native TTL reaps lazily, so an expired item can still be
			// stored. Replace the state but keep the item's version so the
			// conditional write targets what is actually there.
			sess = domain.NewSession(identity, displayName, now)
		}
		if displayName != "" {
			sess.DisplayName = displayName
		}
		sess.Record(text, now)

		err = s.putSession(ctx, sess, version, now)
		if err == nil {
			return *sess, nil
		}
		var condFailed *types.ConditionalCheckFailedException
		if !errors.As(err, &condFailed) {
			return domain.Session{}, err
		}
	}
	return domain.Session{}, errors.New("repository: Touch: session version conflict not resolved")
}

// Sweep is a no-op for this backend: DynamoDB native TTL expires both
// session and rate items.
func (s *Store) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *Store) getSession(ctx context.Context, identity string) (*domain.Session, int, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(identity)},
			"SK": &types.AttributeValueMemberS{Value: skSession},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repository: get session: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, 0, nil
	}

	state, err := strAttr(out.Item, "state")
	if err != nil {
		return nil, 0, fmt.Errorf("repository: get session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(state), &sess); err != nil {
		return nil, 0, fmt.Errorf("repository: decode session state: %w", err)
	}
	version, err := intAttr(out.Item, "ver")
	if err != nil {
		return nil, 0, fmt.Errorf("repository: get session: %w", err)
	}
	return &sess, version, nil
}

func (s *Store) putSession(ctx context.Context, sess *domain.Session, version int, now time.Time) error {
	state, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("repository: encode session state: %w", err)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":    &types.AttributeValueMemberS{Value: userPK(sess.Identity)},
			"SK":    &types.AttributeValueMemberS{Value: skSession},
			"state": &types.AttributeValueMemberS{Value: string(state)},
			"ver":   &types.AttributeValueMemberN{Value: strconv.Itoa(version + 1)},
			"ttl":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.sessionTTL).Unix(), 10)},
		},
	}
	if version == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK) OR ver = :prev")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: "0"},
		}
	} else {
		in.ConditionExpression = aws.String("ver = :prev")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(version)},
		}
	}

	if _, err := s.api.PutItem(ctx, in); err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return err
		}
		return fmt.Errorf("repository: put session: %w", err)
	}
	return nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	raw, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return ts, nil
}
