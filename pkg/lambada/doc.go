// Package lambada describes the LAMBADA (OpenAI) dataset and its language
// variants, and reads its newline-delimited JSON records.
//
// A typical caller selects a variant, lets a Loader materialize its source
// (downloading it through a Materializer if it is remote) and ranges over the
// returned records:
//
//	loader := lambada.NewLoader(fetcher, "data")
//	_, records, err := loader.Open(ctx, "de")
//	if err != nil {
//		return err
//	}
//	for rec, err := range records {
//		if err != nil {
//			return err
//		}
//		fmt.Println(rec.Index, rec.Text)
//	}
package lambada
