// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package awsclient

import (
	"context"
	"fmt"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

type savedAcceptEncoding struct{}

// The GCS interop endpoint rejects signatures that cover Accept-Encoding.
// The header is hidden from the signer and restored once signing is done.
func withGCSSigning(o *s3.Options) {
	o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
		if err := stack.Finalize.Insert(hideAcceptEncoding, "Signing", middleware.Before); err != nil {
			return err
		}
		return stack.Finalize.Insert(restoreAcceptEncoding, "Signing", middleware.After)
	})
}

var hideAcceptEncoding = middleware.FinalizeMiddlewareFunc("tarbatchHideAcceptEncoding",
	func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
		req, err := httpRequest(in)
		if err != nil {
			return middleware.FinalizeOutput{}, middleware.Metadata{}, err
		}
		ctx = middleware.WithStackValue(ctx, savedAcceptEncoding{}, req.Header.Get("Accept-Encoding"))
		req.Header.Del("Accept-Encoding")
		return next.HandleFinalize(ctx, in)
	},
)

var restoreAcceptEncoding = middleware.FinalizeMiddlewareFunc("tarbatchRestoreAcceptEncoding",
	func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
		req, err := httpRequest(in)
		if err != nil {
			return middleware.FinalizeOutput{}, middleware.Metadata{}, err
		}
		if v, _ := middleware.GetStackValue(ctx, savedAcceptEncoding{}).(string); v != "" {
			req.Header.Set("Accept-Encoding", v)
		}
		return next.HandleFinalize(ctx, in)
	},
)

func httpRequest(in middleware.FinalizeInput) (*smithyhttp.Request, error) {
	req, ok := in.Request.(*smithyhttp.Request)
	if !ok {
		return nil, &v4.SigningError{Err: fmt.Errorf("unexpected request middleware type %T", in.Request)}
	}
	return req, nil
}
