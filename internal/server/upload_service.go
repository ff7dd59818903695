package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strings"
	"time"

	"satstash/internal/ecash"
	"satstash/internal/models"
)

const fallbackContentType = "application/octet-stream"

// Ledger is the metadata access the HTTP layer needs.
type Ledger interface {
	UpsertBlob(ctx context.Context, blob *models.Blob) error
	GetBlob(ctx context.Context, sha256 string) (*models.Blob, error)
	InsertToken(ctx context.Context, token *models.PendingToken) error
	BlobStats(ctx context.Context) (count int64, bytes int64, err error)
	MintBalances(ctx context.Context, threshold uint64) ([]models.MintBalance, error)
}

// BlobStore is the payload access the HTTP layer needs.
type BlobStore interface {
	Save(ctx context.Context, data []byte, ext string) (digest string, created bool, err error)
	Delete(ctx context.Context, digest string) error
	Locate(digest string) (string, error)
}

// UploadService drives one upload attempt from price quote to committed blob.
type UploadService struct {
	ledger    Ledger
	blobs     BlobStore
	authority ecash.Authority

	payout          ecash.PaymentRequest
	pricePerByte    float64
	storageDuration time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewUploadService constructs an UploadService. payout is the operator's
// decoded payment request; its mints are the accepted issuers.
func NewUploadService(ledger Ledger, blobs BlobStore, authority ecash.Authority, payout ecash.PaymentRequest, pricePerByte float64, storageDuration time.Duration, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		ledger:          ledger,
		blobs:           blobs,
		authority:       authority,
		payout:          payout,
		pricePerByte:    pricePerByte,
		storageDuration: storageDuration,
		logger:          logger,
		now:             time.Now,
	}
}

// UploadRequest is the transport-independent view of one upload attempt.
type UploadRequest struct {
	Method         string
	DeclaredLength int64 // -1 when the client sent no length
	EncodedToken   string
	ContentType    string
	Body           io.Reader
	BaseURL        string
}

// RequiredAmount prices a declared byte length.
func (s *UploadService) RequiredAmount(declaredLength int64) uint64 {
	return uint64(math.Ceil(float64(declaredLength) * s.pricePerByte))
}

// Challenge builds the encoded payment challenge for an unpaid upload of the
// given price. Transports are stripped: payment is expected back on this same
// HTTP channel, not out-of-band.
func (s *UploadService) Challenge(amount uint64) (string, error) {
	unit := s.payout.Unit
	if unit == "" {
		unit = ecash.DefaultUnit
	}
	return ecash.EncodeRequest(ecash.PaymentRequest{
		Amount:      amount,
		Unit:        unit,
		Mints:       s.payout.Mints,
		Description: "Payment for upload",
	})
}

// Process runs the admission state machine. Terminal rejections come back as
// apiError values carrying status, reason, and (for payment outcomes) the
// encoded challenge.
func (s *UploadService) Process(ctx context.Context, req UploadRequest) (*models.BlobDescriptor, error) {
	if req.DeclaredLength < 0 {
		return nil, makeAPIError(http.StatusLengthRequired, ReasonLengthRequired, fmt.Errorf("Content-Length header is required"))
	}

	required := s.RequiredAmount(req.DeclaredLength)

	// No payment attached, or an explicit probe: answer with a challenge.
	if req.EncodedToken == "" || req.Method == http.MethodHead {
		return nil, s.challengeError(required, ReasonPaymentRequired, fmt.Errorf("payment required"))
	}

	token, err := ecash.DecodeToken(req.EncodedToken)
	if err != nil {
		return nil, badRequest(ReasonInvalidToken, err)
	}

	// Face-value gate only; the redemption step below establishes that the
	// proofs are actually spendable.
	if token.FaceValue() < required {
		return nil, s.challengeError(required, ReasonInsufficientFunds,
			fmt.Errorf("token face value %d below required %d", token.FaceValue(), required))
	}

	if req.Method != http.MethodPut {
		return nil, methodNotAllowed(fmt.Errorf("method %s not allowed", req.Method))
	}

	data, err := readBody(req.Body, req.DeclaredLength)
	if err != nil {
		return nil, err
	}

	return s.commit(ctx, req, token, data)
}

// commit persists the payload, captures the payment, and records metadata.
// Every step after the blob save registers the save's compensating delete:
// storage must never keep bytes whose payment was not captured.
func (s *UploadService) commit(ctx context.Context, req UploadRequest, token ecash.Token, data []byte) (*models.BlobDescriptor, error) {
	contentType := req.ContentType
	if contentType == "" {
		contentType = fallbackContentType
	}
	ext := extensionForType(contentType)

	digest, created, err := s.blobs.Save(ctx, data, ext)
	if err != nil {
		return nil, internalError(fmt.Errorf("save blob: %w", err))
	}

	// Only a fresh write is ours to compensate; a dedup hit means an earlier
	// paid upload owns the file and its ledger row.
	rollback := func() {
		if !created {
			return
		}
		if err := s.blobs.Delete(ctx, digest); err != nil {
			s.logger.Error("upload rollback failed", "sha256", digest, "error", err)
		}
	}

	redeemed, err := s.authority.Redeem(ctx, token)
	if err != nil {
		rollback()
		return nil, paymentRequired(ReasonRedemptionFailed, fmt.Errorf("redeem payment: %w", err))
	}

	encoded, err := ecash.EncodeToken(ecash.Token{
		Mint:   token.Mint,
		Unit:   token.Unit,
		Memo:   digest,
		Proofs: redeemed.Proofs,
	})
	if err != nil {
		rollback()
		return nil, internalError(fmt.Errorf("encode redeemed token: %w", err))
	}
	if err := s.ledger.InsertToken(ctx, &models.PendingToken{
		Token:  encoded,
		Mint:   token.Mint,
		Amount: redeemed.Amount,
	}); err != nil {
		rollback()
		return nil, internalError(fmt.Errorf("record payment: %w", err))
	}

	now := s.now().UTC()
	expires := now.Add(s.storageDuration)
	blob := &models.Blob{
		SHA256:   digest,
		Size:     int64(len(data)),
		Type:     contentType,
		Uploaded: now,
		Expires:  &expires,
	}
	if err := s.ledger.UpsertBlob(ctx, blob); err != nil {
		rollback()
		return nil, internalError(fmt.Errorf("record blob metadata: %w", err))
	}

	s.logger.Info("upload accepted", "sha256", digest, "size", blob.Size, "amount", redeemed.Amount, "mint", token.Mint)

	url := strings.TrimRight(req.BaseURL, "/") + "/" + digest
	if ext != "" {
		url += "." + ext
	}
	return &models.BlobDescriptor{
		URL:      url,
		SHA256:   digest,
		Size:     blob.Size,
		Type:     blob.Type,
		Uploaded: now.Unix(),
	}, nil
}

func (s *UploadService) challengeError(amount uint64, reason string, err error) error {
	challenge, encErr := s.Challenge(amount)
	if encErr != nil {
		return internalError(fmt.Errorf("build challenge: %w", encErr))
	}
	return withChallenge(paymentRequired(reason, err), challenge)
}

// readBody reads exactly declaredLength bytes. The price was computed from
// the declared length, so a shorter or longer body would commit storage at
// the wrong price.
func readBody(r io.Reader, declaredLength int64) ([]byte, error) {
	if r == nil {
		r = strings.NewReader("")
	}
	data, err := io.ReadAll(io.LimitReader(r, declaredLength+1))
	if err != nil {
		return nil, internalError(fmt.Errorf("read upload body: %w", err))
	}
	if int64(len(data)) != declaredLength {
		return nil, badRequest(ReasonLengthMismatch,
			fmt.Errorf("declared length %d but received %d bytes", declaredLength, len(data)))
	}
	return data, nil
}

// extensionForType infers a filename extension from a media type.
func extensionForType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return strings.TrimPrefix(exts[0], ".")
}
