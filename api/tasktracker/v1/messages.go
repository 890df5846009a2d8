package tasktrackerv1

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gurkanbulca/tasktracker/internal/docstore"
)

// ErrMalformed is returned when a Struct does not have the expected shape.
var ErrMalformed = errors.New("malformed message")

// Credentials is the SignUp and SignIn request.
type Credentials struct {
	Email       string
	Password    string
	DisplayName string
}

// Proto encodes the credentials.
func (c Credentials) Proto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"email":        c.Email,
		"password":     c.Password,
		"display_name": c.DisplayName,
	})
}

// CredentialsFromProto decodes SignUp and SignIn requests.
func CredentialsFromProto(s *structpb.Struct) (Credentials, error) {
	var c Credentials
	var err error
	if c.Email, err = stringField(s, "email"); err != nil {
		return Credentials{}, err
	}
	if c.Password, err = stringField(s, "password"); err != nil {
		return Credentials{}, err
	}
	if c.DisplayName, err = stringField(s, "display_name"); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// Session is returned by SignUp, SignIn and RefreshToken.
type Session struct {
	UserID       string
	Email        string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
}

// Proto encodes the session.
func (s Session) Proto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"user_id":       s.UserID,
		"email":         s.Email,
		"display_name":  s.DisplayName,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"expires_in":    s.ExpiresIn,
	})
}

// SessionFromProto decodes SignUp, SignIn and RefreshToken responses.
func SessionFromProto(p *structpb.Struct) (Session, error) {
	var s Session
	var err error
	for key, dst := range map[string]*string{
		"user_id":       &s.UserID,
		"email":         &s.Email,
		"display_name":  &s.DisplayName,
		"access_token":  &s.AccessToken,
		"refresh_token": &s.RefreshToken,
	} {
		if *dst, err = stringField(p, key); err != nil {
			return Session{}, err
		}
	}
	expiresIn, err := numberField(p, "expires_in")
	if err != nil {
		return Session{}, err
	}
	s.ExpiresIn = int64(expiresIn)
	if s.UserID == "" || s.AccessToken == "" {
		return Session{}, fmt.Errorf("%w: session without user or token", ErrMalformed)
	}
	return s, nil
}

// TokenRequest carries a refresh token for SignOut and RefreshToken.
type TokenRequest struct {
	RefreshToken string
}

// Proto encodes the token request.
func (r TokenRequest) Proto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"refresh_token": r.RefreshToken})
}

// TokenRequestFromProto decodes SignOut and RefreshToken requests.
func TokenRequestFromProto(s *structpb.Struct) (TokenRequest, error) {
	token, err := stringField(s, "refresh_token")
	if err != nil {
		return TokenRequest{}, err
	}
	return TokenRequest{RefreshToken: token}, nil
}

// QueryProto encodes a Query or Watch request.
func QueryProto(q docstore.Query) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"collection": q.Collection,
		"field":      q.Field,
		"value":      q.Value,
	})
}

// QueryFromProto decodes a Query or Watch request. Numbers come back as float64.
func QueryFromProto(s *structpb.Struct) (docstore.Query, error) {
	var q docstore.Query
	var err error
	if q.Collection, err = stringField(s, "collection"); err != nil {
		return docstore.Query{}, err
	}
	if q.Field, err = stringField(s, "field"); err != nil {
		return docstore.Query{}, err
	}
	if v, ok := s.GetFields()["value"]; ok {
		q.Value = v.AsInterface()
	}
	return q, nil
}

// DocumentsProto encodes a DocumentList: {"documents": [{"id", "fields"}]}.
func DocumentsProto(docs []docstore.Document) (*structpb.Struct, error) {
	list := make([]any, 0, len(docs))
	for _, d := range docs {
		list = append(list, map[string]any{
			"id":     d.ID,
			"fields": map[string]any(d.Fields),
		})
	}
	s, err := structpb.NewStruct(map[string]any{"documents": list})
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	return s, nil
}

// DocumentsFromProto decodes a Query response or a Watch snapshot.
func DocumentsFromProto(s *structpb.Struct) ([]docstore.Document, error) {
	v, ok := s.GetFields()["documents"]
	if !ok {
		return []docstore.Document{}, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: documents is not a list", ErrMalformed)
	}
	docs := make([]docstore.Document, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		entry := item.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("%w: document %d is not an object", ErrMalformed, i)
		}
		id, err := stringField(entry, "id")
		if err != nil {
			return nil, err
		}
		fields, err := fieldsField(entry, "fields")
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}
	return docs, nil
}

// InsertRequest adds a document to Collection.
type InsertRequest struct {
	Collection string
	Fields     docstore.Fields
}

// Proto encodes the insert request.
func (r InsertRequest) Proto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"collection": r.Collection,
		"fields":     map[string]any(r.Fields),
	})
}

// InsertRequestFromProto decodes an Insert request.
func InsertRequestFromProto(s *structpb.Struct) (InsertRequest, error) {
	collection, err := stringField(s, "collection")
	if err != nil {
		return InsertRequest{}, err
	}
	fields, err := fieldsField(s, "fields")
	if err != nil {
		return InsertRequest{}, err
	}
	return InsertRequest{Collection: collection, Fields: fields}, nil
}

// IDProto encodes the Insert response.
func IDProto(id string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"id": id})
}

// IDFromProto decodes the Insert response.
func IDFromProto(s *structpb.Struct) (string, error) {
	id, err := stringField(s, "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: missing id", ErrMalformed)
	}
	return id, nil
}

// MutateRequest merges Fields into document ID. For Remove, Fields is empty.
type MutateRequest struct {
	Collection string
	ID         string
	Fields     docstore.Fields
}

// Proto encodes the mutate request.
func (r MutateRequest) Proto() (*structpb.Struct, error) {
	m := map[string]any{
		"collection": r.Collection,
		"id":         r.ID,
	}
	if r.Fields != nil {
		m["fields"] = map[string]any(r.Fields)
	}
	return structpb.NewStruct(m)
}

// MutateRequestFromProto decodes Mutate and Remove requests.
func MutateRequestFromProto(s *structpb.Struct) (MutateRequest, error) {
	var r MutateRequest
	var err error
	if r.Collection, err = stringField(s, "collection"); err != nil {
		return MutateRequest{}, err
	}
	if r.ID, err = stringField(s, "id"); err != nil {
		return MutateRequest{}, err
	}
	if r.Fields, err = fieldsField(s, "fields"); err != nil {
		return MutateRequest{}, err
	}
	return r, nil
}

// stringField returns key's string value; missing keys and nulls read as "".
func stringField(s *structpb.Struct, key string) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformed, key)
	}
}

func numberField(s *structpb.Struct, key string) (float64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformed, key)
	}
	return n.NumberValue, nil
}

// fieldsField returns key's object value as document fields; missing reads as empty.
func fieldsField(s *structpb.Struct, key string) (docstore.Fields, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return docstore.Fields{}, nil
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("%w: %s is not an object", ErrMalformed, key)
	}
	return docstore.Fields(obj.AsMap()), nil
}
