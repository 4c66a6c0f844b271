/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ingest pkg/ingest/grpc.go exposes snapshot submission as a gRPC
// service. Requests and responses are google.protobuf.Struct documents with
// the same shape as the HTTP API.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carverauto/siteradar/pkg/reconcile"
	"github.com/carverauto/siteradar/pkg/snapshot"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName  = "siteradar.v1.SnapshotService"
	SubmitMethod = "/" + ServiceName + "/Submit"
)

// SnapshotServer is the server API of the snapshot service.
type SnapshotServer interface {
	Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// SnapshotServiceDesc describes the snapshot service for grpc.Server.RegisterService.
var SnapshotServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Submit",
			Handler:    submitHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "siteradar/v1/snapshot.proto",
}

func submitHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(SnapshotServer).Submit(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SubmitMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServer).Submit(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

// GRPCServer adapts Service to SnapshotServer.
type GRPCServer struct {
	svc *Service
}

var _ SnapshotServer = (*GRPCServer)(nil)

func NewGRPCServer(svc *Service) *GRPCServer {
	return &GRPCServer{svc: svc}
}

func (g *GRPCServer) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	source := "grpc"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		source = "grpc:" + p.Addr.String()
	}

	outcome, err := g.svc.SubmitDocument(ctx, source, in.AsMap())
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := OutcomeToStruct(outcome)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding outcome: %v", err)
	}

	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, snapshot.ErrInvalid), errors.Is(err, snapshot.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, reconcile.ErrStoreRead):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// OutcomeToStruct converts an outcome into its JSON document form.
func OutcomeToStruct(outcome *reconcile.Outcome) (*structpb.Struct, error) {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	return structpb.NewStruct(doc)
}

// SnapshotClient is the client API of the snapshot service.
type SnapshotClient struct {
	cc grpc.ClientConnInterface
}

func NewSnapshotClient(cc grpc.ClientConnInterface) *SnapshotClient {
	return &SnapshotClient{cc: cc}
}

func (c *SnapshotClient) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)

	if err := c.cc.Invoke(ctx, SubmitMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// SubmitJSON sends a raw snapshot document.
func (c *SnapshotClient) SubmitJSON(ctx context.Context, data []byte, opts ...grpc.CallOption) (*structpb.Struct, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", snapshot.ErrMalformed, err)
	}

	in, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", snapshot.ErrMalformed, err)
	}

	return c.Submit(ctx, in, opts...)
}
