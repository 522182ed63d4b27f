// Package store persists per-user Drive credentials and the app-root folder
// pointer in DynamoDB.
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/msa-world/geoinformatic-drive/internal/crypto"
	"github.com/msa-world/geoinformatic-drive/internal/model"
)

// DynamoDBClient is the subset of *dynamodb.Client methods used by Accounts.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Accounts resolves and persists Drive credentials. Encrypted tokens live in
// the accounts table; the profile record carries the legacy plaintext token,
// the cached access token, and the app-root folder id.
type Accounts struct {
	db            DynamoDBClient
	accountsTable string
	profilesTable string
	encryptor     crypto.Encryptor
}

// NewAccounts creates a new Accounts store.
func NewAccounts(db DynamoDBClient, accountsTable, profilesTable string, encryptor crypto.Encryptor) *Accounts {
	return &Accounts{
		db:            db,
		accountsTable: accountsTable,
		profilesTable: profilesTable,
		encryptor:     encryptor,
	}
}

func (a *Accounts) getProfile(ctx context.Context, profileID string) (*model.Profile, error) {
	out, err := a.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(a.profilesTable),
		Key: map[string]types.AttributeValue{
			"profile_id": &types.AttributeValueMemberS{Value: profileID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var profile model.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

// RefreshToken resolves the user's refresh token. The encrypted token in the
// accounts table is preferred; a decryption failure is logged and treated as
// absent so the legacy plaintext attribute on the profile still gets a
// chance. Returns "" with a nil error when the user is not connected.
func (a *Accounts) RefreshToken(ctx context.Context, profileID string) (string, error) {
	out, err := a.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(a.accountsTable),
		Key: map[string]types.AttributeValue{
			"profile_id": &types.AttributeValueMemberS{Value: profileID},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get account: %w", err)
	}

	if out.Item != nil {
		var account model.DriveAccount
		if err := attributevalue.UnmarshalMap(out.Item, &account); err != nil {
			return "", fmt.Errorf("failed to unmarshal account: %w", err)
		}
		if account.EncryptedRefreshToken != "" {
			token, err := a.encryptor.Decrypt(ctx, account.EncryptedRefreshToken)
			if err != nil {
				log.Printf("failed to decrypt refresh token for %s, falling back to legacy: %v", profileID, err)
			} else if token != "" {
				return token, nil
			}
		}
	}

	profile, err := a.getProfile(ctx, profileID)
	if err != nil {
		return "", err
	}
	if profile == nil {
		return "", nil
	}
	return profile.GoogleRefreshToken, nil
}

// SaveRefreshToken encrypts and stores the refresh token and stamps the
// connection time on the profile record.
func (a *Accounts) SaveRefreshToken(ctx context.Context, profileID, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("no refresh token to save")
	}

	encrypted, err := a.encryptor.Encrypt(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	item, err := attributevalue.MarshalMap(model.DriveAccount{
		ProfileID:             profileID,
		EncryptedRefreshToken: encrypted,
		UpdatedAt:             time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if _, err := a.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.accountsTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	_, err = a.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.profilesTable),
		Key: map[string]types.AttributeValue{
			"profile_id": &types.AttributeValueMemberS{Value: profileID},
		},
		UpdateExpression: aws.String("SET drive_connected_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to stamp connection time: %w", err)
	}

	return nil
}

// CacheAccessToken stores the short-lived access token on the profile record.
// The cached value is never authoritative; failures here are the caller's to
// ignore.
func (a *Accounts) CacheAccessToken(ctx context.Context, profileID, accessToken string) error {
	_, err := a.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.profilesTable),
		Key: map[string]types.AttributeValue{
			"profile_id": &types.AttributeValueMemberS{Value: profileID},
		},
		UpdateExpression: aws.String("SET google_access_token = :tok"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tok": &types.AttributeValueMemberS{Value: accessToken},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to cache access token: %w", err)
	}
	return nil
}

// AppFolderID returns the persisted app-root folder id, or "" when none has
// been provisioned. The persisted id is trusted without remote verification.
func (a *Accounts) AppFolderID(ctx context.Context, profileID string) (string, error) {
	profile, err := a.getProfile(ctx, profileID)
	if err != nil {
		return "", err
	}
	if profile == nil {
		return "", nil
	}
	return profile.DriveFolderID, nil
}

// SetAppFolderID persists the app-root folder id. Last writer wins: all
// writers carry either the one true folder id or a freshly-created duplicate
// from a provisioning race, and either value is functional.
func (a *Accounts) SetAppFolderID(ctx context.Context, profileID, folderID string) error {
	_, err := a.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.profilesTable),
		Key: map[string]types.AttributeValue{
			"profile_id": &types.AttributeValueMemberS{Value: profileID},
		},
		UpdateExpression: aws.String("SET drive_folder_id = :fid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fid": &types.AttributeValueMemberS{Value: folderID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to persist app folder id: %w", err)
	}
	return nil
}

// Disconnect removes the stored credentials for the user. The app folder id
// is kept so a reconnect finds the same folder.
func (a *Accounts) Disconnect(ctx context.Context, profileID string) error {
	if _, err := a.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(a.accountsTable),
		Key: map[string]types.AttributeValue{
			"profile_id": &types.AttributeValueMemberS{Value: profileID},
		},
	}); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	_, err := a.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.profilesTable),
		Key: map[string]types.AttributeValue{
			"profile_id": &types.AttributeValueMemberS{Value: profileID},
		},
		UpdateExpression: aws.String("REMOVE google_refresh_token, google_access_token, drive_connected_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to clear profile tokens: %w", err)
	}
	return nil
}

// ConnectedAt returns the recorded connection timestamp, zero when unknown.
func (a *Accounts) ConnectedAt(ctx context.Context, profileID string) (time.Time, error) {
	profile, err := a.getProfile(ctx, profileID)
	if err != nil || profile == nil {
		return time.Time{}, err
	}
	return profile.DriveConnectedAt, nil
}
