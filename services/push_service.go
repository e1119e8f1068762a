package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"gorm.io/gorm"

	"diettracker/models"
)

// SNSAPI is the slice of the SNS client PushService uses.
type SNSAPI interface {
	CreatePlatformEndpoint(ctx context.Context, in *awssns.CreatePlatformEndpointInput, optFns ...func(*awssns.Options)) (*awssns.CreatePlatformEndpointOutput, error)
	Publish(ctx context.Context, in *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// PushService delivers mobile notifications through SNS platform endpoints.
type PushService struct {
	db              *gorm.DB
	sns             SNSAPI
	fcmPlatformArn  string
	apnsPlatformArn string
}

func NewPushService(db *gorm.DB, sns SNSAPI, fcmArn, apnsArn string) *PushService {
	return &PushService{db: db, sns: sns, fcmPlatformArn: fcmArn, apnsPlatformArn: apnsArn}
}

type RegisterDeviceReq struct {
	Platform string `json:"platform"` // "android" | "ios"
	Token    string `json:"token"`
}

func (p *PushService) tokenHash(tok string) string {
	h := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(h[:])
}

func (p *PushService) platformArn(platform string) (string, error) {
	switch strings.ToLower(platform) {
	case "ios":
		if p.apnsPlatformArn != "" {
			return p.apnsPlatformArn, nil
		}
		fallthrough
	case "android":
		if p.fcmPlatformArn == "" {
			return "", invalidf("push notifications are not configured")
		}
		return p.fcmPlatformArn, nil
	default:
		return "", invalidf("platform must be android or ios")
	}
}

// RegisterDevice creates (or refreshes) the SNS endpoint for a device token.
func (p *PushService) RegisterDevice(ctx context.Context, userID string, req RegisterDeviceReq) (*models.UserDevice, error) {
	if strings.TrimSpace(req.Token) == "" {
		return nil, invalidf("token is required")
	}
	appArn, err := p.platformArn(req.Platform)
	if err != nil {
		return nil, err
	}
	out, err := p.sns.CreatePlatformEndpoint(ctx, &awssns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(appArn),
		Token:                  aws.String(req.Token),
	})
	if err != nil {
		return nil, fmt.Errorf("create platform endpoint: %w", err)
	}

	hash := p.tokenHash(req.Token)
	var dev models.UserDevice
	err = p.db.WithContext(ctx).Where("user_id = ? AND token_hash = ?", userID, hash).First(&dev).Error
	switch {
	case err == nil:
		dev.EndpointARN = aws.ToString(out.EndpointArn)
		dev.Platform = strings.ToLower(req.Platform)
		dev.Enabled = true
		dev.UpdatedAt = time.Now()
		err = p.db.WithContext(ctx).Save(&dev).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		dev = models.UserDevice{
			UserID:      userID,
			Platform:    strings.ToLower(req.Platform),
			TokenHash:   hash,
			EndpointARN: aws.ToString(out.EndpointArn),
			Enabled:     true,
		}
		err = p.db.WithContext(ctx).Create(&dev).Error
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// PushToUser publishes to every enabled device of userID and returns how many
// deliveries SNS accepted.
func (p *PushService) PushToUser(ctx context.Context, userID, title, body string, data map[string]string) int {
	var endpoints []models.UserDevice
	if err := p.db.WithContext(ctx).Where("user_id = ? AND enabled = ?", userID, true).Find(&endpoints).Error; err != nil {
		log.Printf("push: list devices for %s: %v", userID, err)
		return 0
	}
	if len(endpoints) == 0 {
		return 0
	}

	gcm, _ := json.Marshal(map[string]any{
		"notification": map[string]string{"title": title, "body": body},
		"data":         data,
	})
	// SNS expects each platform payload as a JSON string.
	raw, _ := json.Marshal(map[string]string{"default": body, "GCM": string(gcm)})

	sent := 0
	for _, d := range endpoints {
		_, err := p.sns.Publish(ctx, &awssns.PublishInput{
			MessageStructure: aws.String("json"),
			Message:          aws.String(string(raw)),
			TargetArn:        aws.String(d.EndpointARN),
		})
		if err != nil {
			log.Printf("push: publish to %s failed: %v", d.EndpointARN, err)
			continue
		}
		sent++
	}
	return sent
}

// Notify turns food log events into a short push message.
func (p *PushService) Notify(userID, kind, _ string, payload any) {
	entry, ok := payload.(*models.FoodLog)
	if kind != EventFoodLogCreated || !ok {
		return
	}
	body := fmt.Sprintf("Logged %s: %.0f kcal", entry.MealType, entry.TotalCalories)
	data := map[string]string{"type": kind, "foodLogId": entry.ID}
	go p.PushToUser(context.Background(), userID, "Meal logged", body, data)
}

// Notifiers fans one event out to several notifiers.
type Notifiers []FoodLogNotifier

func (n Notifiers) Notify(userID, kind, key string, payload any) {
	for _, x := range n {
		x.Notify(userID, kind, key, payload)
	}
}
