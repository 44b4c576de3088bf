/*
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

package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/carverauto/otelhub/pkg/telemetry"
)

// WatchServiceName is the fully qualified gRPC service name.
const WatchServiceName = "otelhub.v1.TelemetryWatch"

// WatchServer streams live tails. Requests carry the same keys as the HTTP
// query parameters; every response is a JSON-shaped Frame.
type WatchServer interface {
	WatchTraces(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	WatchLogs(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	WatchResources(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// WatchServiceDesc describes TelemetryWatch without generated stubs.
var WatchServiceDesc = grpc.ServiceDesc{
	ServiceName: WatchServiceName,
	HandlerType: (*WatchServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchTraces", Handler: watchHandler(WatchServer.WatchTraces), ServerStreams: true},
		{StreamName: "WatchLogs", Handler: watchHandler(WatchServer.WatchLogs), ServerStreams: true},
		{StreamName: "WatchResources", Handler: watchHandler(WatchServer.WatchResources), ServerStreams: true},
	},
	Metadata: "otelhub/v1/watch.proto",
}

type watchMethod func(WatchServer, *structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error

func watchHandler(method watchMethod) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(structpb.Struct)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}

		return method(srv.(WatchServer), in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
	}
}

// WatchService implements WatchServer on top of a Tailer.
type WatchService struct {
	tailer *Tailer
}

// NewWatchService creates the service.
func NewWatchService(tailer *Tailer) *WatchService {
	return &WatchService{tailer: tailer}
}

// Register adds the service to a gRPC server.
func (w *WatchService) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&WatchServiceDesc, w)
}

func (w *WatchService) WatchTraces(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	return w.watch(telemetry.SignalTraces, req, stream)
}

func (w *WatchService) WatchLogs(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	return w.watch(telemetry.SignalLogs, req, stream)
}

func (w *WatchService) WatchResources(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	return w.watch(telemetry.SignalResources, req, stream)
}

func (w *WatchService) watch(signal telemetry.Signal, in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	values, err := structValues(in)
	if err != nil {
		return status.Error(grpcCode(err), err.Error())
	}

	req, err := ParseTailRequest(signal, values)
	if err != nil {
		return status.Error(grpcCode(err), err.Error())
	}

	err = w.tailer.Tail(stream.Context(), req, func(frame Frame) error {
		out, err := frameStruct(frame)
		if err != nil {
			return err
		}

		return stream.Send(out)
	})
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return err
		}

		return status.Error(grpcCode(err), err.Error())
	}

	return nil
}

// structValues flattens a request struct into query parameters. Lists become
// repeated parameters.
func structValues(in *structpb.Struct) (url.Values, error) {
	values := url.Values{}

	for key, value := range in.GetFields() {
		switch kind := value.GetKind().(type) {
		case *structpb.Value_ListValue:
			for _, item := range kind.ListValue.GetValues() {
				s, err := scalarString(key, item)
				if err != nil {
					return nil, err
				}

				values.Add(key, s)
			}
		default:
			s, err := scalarString(key, value)
			if err != nil {
				return nil, err
			}

			values.Set(key, s)
		}
	}

	return values, nil
}

func scalarString(key string, value *structpb.Value) (string, error) {
	switch kind := value.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64), nil
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue), nil
	}

	return "", fmt.Errorf("%w: %s must be a string, number or bool", ErrInvalidParameter, key)
}

func frameStruct(frame Frame) (*structpb.Struct, error) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}

	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}

	return out, nil
}

// WatchClient calls TelemetryWatch.
type WatchClient struct {
	cc grpc.ClientConnInterface
}

// NewWatchClient wraps a client connection.
func NewWatchClient(cc grpc.ClientConnInterface) *WatchClient {
	return &WatchClient{cc: cc}
}

func (c *WatchClient) WatchTraces(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return c.watch(ctx, 0, in, opts...)
}

func (c *WatchClient) WatchLogs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return c.watch(ctx, 1, in, opts...)
}

func (c *WatchClient) WatchResources(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return c.watch(ctx, 2, in, opts...)
}

func (c *WatchClient) watch(
	ctx context.Context, index int, in *structpb.Struct, opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	desc := &WatchServiceDesc.Streams[index]

	stream, err := c.cc.NewStream(ctx, desc, "/"+WatchServiceName+"/"+desc.StreamName, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}

	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
