package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"visaconnect/pkg/errors"
)

// listQuery counts the query, applies limit/offset and decodes each document
// into T.
func listQuery[T any](ctx context.Context, query firestore.Query, limit, offset int, resource string) ([]*T, int64, error) {
	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count "+resource, err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	items, err := collect[T](query.Documents(ctx), resource)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collect[T any](iter *firestore.DocumentIterator, resource string) ([]*T, error) {
	defer iter.Stop()

	items := []*T{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate "+resource, err)
		}

		var item T
		if err := doc.DataTo(&item); err != nil {
			return nil, errors.Internal("Failed to parse "+resource+" data", err)
		}
		items = append(items, &item)
	}
	return items, nil
}

func getDoc[T any](ctx context.Context, ref *firestore.DocumentRef, resource string) (*T, error) {
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound(resource, err)
		}
		return nil, errors.Internal("Failed to get "+resource, err)
	}

	var item T
	if err := doc.DataTo(&item); err != nil {
		return nil, errors.Internal("Failed to parse "+resource+" data", err)
	}
	return &item, nil
}

// partyQuery narrows a collection to the documents where the user is the
// party matching role. Admins see every document.
func partyQuery(col *firestore.CollectionRef, userID, role, status string) firestore.Query {
	query := col.Query
	switch role {
	case "admin":
	case "agent":
		query = query.Where("agentId", "==", userID)
	default:
		query = query.Where("clientId", "==", userID)
	}
	if status != "" {
		query = query.Where("status", "==", status)
	}
	return query.OrderBy("createdAt", firestore.Desc)
}
