package logfields

import "go.uber.org/zap"

func Repository(val string) zap.Field {
	return zap.String("github.repository", val)
}

func Action(val string) zap.Field {
	return zap.String("github.action", val)
}

func Labels(val []string) zap.Field {
	return zap.Strings("github.labels", val)
}

func DeliveryID(val string) zap.Field {
	return zap.String("github.delivery_id", val)
}

func WebhookType(val string) zap.Field {
	return zap.String("github.webhook_type", val)
}

func Organization(val string) zap.Field {
	return zap.String("github.organization", val)
}

func ProjectNumber(val int) zap.Field {
	return zap.Int("github.project_number", val)
}
