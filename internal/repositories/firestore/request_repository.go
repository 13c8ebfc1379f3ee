package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/autexline/api/internal/domain"
	pfirestore "github.com/autexline/api/internal/platform/firestore"
	"github.com/autexline/api/internal/repositories"
)

const (
	requestsCollection = "productRequests"
	vehiclesCollection = "vehicles"
	partsCollection    = "parts"

	defaultListLimit = 20
	maxListLimit     = 100
)

type requestDocument struct {
	RequestType   string         `firestore:"requestType"`
	Status        string         `firestore:"status"`
	RequesterID   string         `firestore:"requesterId"`
	RequesterName string         `firestore:"requesterName"`
	RequesterRole string         `firestore:"requesterRole"`
	ProductData   map[string]any `firestore:"productData"`

	ReviewedBy      string     `firestore:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time `firestore:"reviewedAt,omitempty"`
	RejectionReason string     `firestore:"rejectionReason,omitempty"`
	AdminNotes      string     `firestore:"adminNotes,omitempty"`

	ApprovedProductID   string `firestore:"approvedProductId,omitempty"`
	ApprovedProductKind string `firestore:"approvedProductKind,omitempty"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func toRequestDocument(request domain.ProductRequest) requestDocument {
	return requestDocument{
		RequestType:         string(request.Type),
		Status:              string(request.Status),
		RequesterID:         request.RequesterID,
		RequesterName:       request.RequesterName,
		RequesterRole:       request.RequesterRole,
		ProductData:         request.ProductData,
		ReviewedBy:          request.ReviewedBy,
		ReviewedAt:          request.ReviewedAt,
		RejectionReason:     request.RejectionReason,
		AdminNotes:          request.AdminNotes,
		ApprovedProductID:   request.ApprovedProductID,
		ApprovedProductKind: string(request.ApprovedProductKind),
		CreatedAt:           request.CreatedAt,
		UpdatedAt:           request.UpdatedAt,
	}
}

func fromRequestDocument(id string, doc requestDocument) domain.ProductRequest {
	return domain.ProductRequest{
		ID:                  id,
		Type:                domain.RequestType(doc.RequestType),
		Status:              domain.RequestStatus(doc.Status),
		RequesterID:         doc.RequesterID,
		RequesterName:       doc.RequesterName,
		RequesterRole:       doc.RequesterRole,
		ProductData:         doc.ProductData,
		ReviewedBy:          doc.ReviewedBy,
		ReviewedAt:          doc.ReviewedAt,
		RejectionReason:     doc.RejectionReason,
		AdminNotes:          doc.AdminNotes,
		ApprovedProductID:   doc.ApprovedProductID,
		ApprovedProductKind: domain.CatalogKind(doc.ApprovedProductKind),
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
}

// RequestRepository implements repositories.ProductRequestRepository on Firestore.
type RequestRepository struct {
	provider *pfirestore.Provider
	requests *pfirestore.BaseRepository[requestDocument]
	vehicles *pfirestore.BaseRepository[domain.Vehicle]
	parts    *pfirestore.BaseRepository[domain.Part]
}

// NewRequestRepository constructs a Firestore-backed product request repository.
func NewRequestRepository(provider *pfirestore.Provider) (*RequestRepository, error) {
	if provider == nil {
		return nil, errors.New("request repository requires firestore provider")
	}
	return &RequestRepository{
		provider: provider,
		requests: pfirestore.NewBaseRepository[requestDocument](provider, requestsCollection, nil, nil),
		vehicles: pfirestore.NewBaseRepository[domain.Vehicle](provider, vehiclesCollection, nil, nil),
		parts:    pfirestore.NewBaseRepository[domain.Part](provider, partsCollection, nil, nil),
	}, nil
}

// Create persists a new request document under its pre-assigned ID.
func (r *RequestRepository) Create(ctx context.Context, request domain.ProductRequest) (domain.ProductRequest, error) {
	if strings.TrimSpace(request.ID) == "" {
		return domain.ProductRequest{}, errors.New("request id is required")
	}
	if _, err := r.requests.Create(ctx, request.ID, toRequestDocument(request)); err != nil {
		return domain.ProductRequest{}, err
	}
	return request, nil
}

// GetByID fetches a single request.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (domain.ProductRequest, error) {
	doc, err := r.requests.Get(ctx, id)
	if err != nil {
		return domain.ProductRequest{}, err
	}
	return fromRequestDocument(doc.ID, doc.Data), nil
}

// FinalizeReview applies a review decision atomically. The decision callback
// sees the request as read inside the transaction; the catalog create (when
// present) and the request update commit together or not at all.
func (r *RequestRepository) FinalizeReview(ctx context.Context, id string, decide repositories.ReviewDecision) (domain.ProductRequest, error) {
	if decide == nil {
		return domain.ProductRequest{}, errors.New("review decision is required")
	}

	var updated domain.ProductRequest

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.requests.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		decoded, err := r.requests.Decode(ctx, snapshot)
		if err != nil {
			return err
		}
		current := fromRequestDocument(decoded.ID, decoded.Data)

		update, catalogWrite, err := decide(current)
		if err != nil {
			return err
		}

		if catalogWrite != nil {
			catalogRef, err := r.catalogRef(ctx, catalogWrite)
			if err != nil {
				return err
			}
			entity, err := catalogEntity(catalogWrite)
			if err != nil {
				return err
			}
			if err := tx.Create(catalogRef, entity); err != nil {
				return err
			}
		}

		now := update.ReviewedAt
		if now.IsZero() {
			now = time.Now().UTC()
		}

		current.Status = update.Status
		if update.ProductData != nil {
			current.ProductData = update.ProductData
		}
		current.ReviewedBy = update.ReviewedBy
		reviewedAt := now
		current.ReviewedAt = &reviewedAt
		current.RejectionReason = update.RejectionReason
		current.AdminNotes = update.AdminNotes
		current.ApprovedProductID = update.ApprovedProductID
		current.ApprovedProductKind = update.ApprovedProductKind
		current.UpdatedAt = now

		if err := tx.Set(ref, toRequestDocument(current)); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return domain.ProductRequest{}, pfirestore.WrapError("requests.finalize", err)
	}
	return updated, nil
}

func (r *RequestRepository) catalogRef(ctx context.Context, write *repositories.CatalogWrite) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(write.ID) == "" {
		return nil, errors.New("catalog entity id is required")
	}
	switch {
	case write.Vehicle != nil:
		return r.vehicles.DocumentRef(ctx, write.ID)
	case write.Part != nil:
		return r.parts.DocumentRef(ctx, write.ID)
	default:
		return nil, errors.New("catalog write carries no entity")
	}
}

func catalogEntity(write *repositories.CatalogWrite) (any, error) {
	switch {
	case write.Vehicle != nil:
		return *write.Vehicle, nil
	case write.Part != nil:
		return *write.Part, nil
	default:
		return nil, errors.New("catalog write carries no entity")
	}
}

// List returns the requested page, newest first, with the total match count.
func (r *RequestRepository) List(ctx context.Context, filter domain.RequestFilter) (domain.RequestPage, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	build := func(q firestore.Query) firestore.Query {
		return r.applyFilter(q, filter)
	}

	total, err := r.requests.Count(ctx, build)
	if err != nil {
		return domain.RequestPage{}, err
	}

	docs, err := r.requests.Query(ctx, func(q firestore.Query) firestore.Query {
		q = r.applyFilter(q, filter)
		return q.OrderBy("createdAt", firestore.Desc).Offset((page - 1) * limit).Limit(limit)
	})
	if err != nil {
		return domain.RequestPage{}, err
	}

	requests := make([]domain.ProductRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, fromRequestDocument(doc.ID, doc.Data))
	}

	pageCount := int(total) / limit
	if int(total)%limit != 0 {
		pageCount++
	}

	return domain.RequestPage{
		Requests:   requests,
		Page:       page,
		PageCount:  pageCount,
		TotalItems: total,
	}, nil
}

func (r *RequestRepository) applyFilter(q firestore.Query, filter domain.RequestFilter) firestore.Query {
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	if filter.Type != "" {
		q = q.Where("requestType", "==", string(filter.Type))
	}
	if filter.RequesterID != "" {
		q = q.Where("requesterId", "==", filter.RequesterID)
	}
	return q
}

// CountPending returns how many requests currently await review.
func (r *RequestRepository) CountPending(ctx context.Context) (int64, error) {
	return r.requests.Count(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("status", "==", string(domain.RequestStatusPending))
	})
}

// ListByRequester returns all requests submitted by one seller, newest first.
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID string) ([]domain.ProductRequest, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, errors.New("requester id is required")
	}
	docs, err := r.requests.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("requesterId", "==", requesterID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	requests := make([]domain.ProductRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, fromRequestDocument(doc.ID, doc.Data))
	}
	return requests, nil
}
