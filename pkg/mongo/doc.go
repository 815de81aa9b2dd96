// Package mongo connects to the MongoDB content store with mongo-driver/v2.
//
// The metering engine only reads content records, through usage.MongoSource:
//
//	client, coll, err := mongo.ContentCollection(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Disconnect(context.Background())
//
//	agg := usage.NewAggregator(usage.NewMongoSource(coll))
package mongo
