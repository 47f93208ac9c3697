//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

/*
This is the Go SDK for the Keystone NoSQL database.

The keystonedb package provides the client used to access the database. A
client is created from a Config that names the service endpoint and an
authorization provider:

	provider, err := access.NewSignatureProviderFromFile(keyID, keyFile, nil)
	if err != nil {
	    return err
	}
	client, err := keystonedb.NewClient(keystonedb.Config{
	    Endpoint:              "https://nosql.example.com",
	    AuthorizationProvider: provider,
	})

See the examples directory for complete programs that create tables, write
and read rows and execute queries.
*/
package keystone
