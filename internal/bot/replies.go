package bot

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/paresiga/go-traffic-backend/internal/domain"
	"github.com/paresiga/go-traffic-backend/internal/services"
)

// Reply strings kept byte-for-byte where the group already knows them; the
// bot's voice is part of the product.

var titleCaser = cases.Title(language.BrazilianPortuguese)

func endpointName(e domain.Endpoint) string {
	if e == domain.EndpointCenter {
		return "QC"
	}
	return "Goioerê"
}

// formatAgo renders the age of a timestamp the way the group reads it.
func formatAgo(d time.Duration) string {
	minutes := int(d.Minutes())
	switch {
	case minutes < 1:
		return "agora mesmo"
	case minutes < 60:
		return fmt.Sprintf("%d minutos atrás", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%d horas atrás", minutes/60)
	default:
		return fmt.Sprintf("%d dias atrás", minutes/1440)
	}
}

func replyStatus(pair domain.StatusPair, transition *domain.PendingTransition, now time.Time) string {
	if transition != nil {
		return fmt.Sprintf(
			"🚧 *Transição em Andamento*\n"+
				"Lado %s liberando os últimos carros.\n"+
				"↪️ Iniciada: %s\n\n"+
				"📱 Quando a pista limpar, use:\n"+
				"➡️ *!passou*",
			endpointName(transition.Endpoint),
			formatAgo(now.Sub(transition.StartedAt)),
		)
	}

	open := pair.OpenEndpoint()
	ago := formatAgo(now.Sub(pair.Get(open).ChangedAt))

	if now.Sub(pair.Get(open).ChangedAt) > time.Hour {
		return fmt.Sprintf(
			"⚠️ *Status Desatualizado*\n"+
				"Última atualização: %s\n\n"+
				"📱 Para atualizar, use:\n"+
				"➡️ *!alterna*",
			ago,
		)
	}

	return fmt.Sprintf(
		"🟢 *%s PASSANDO* 🟢\n"+
			"↪️ Última atualização: %s\n"+
			"❌ %s PARADO",
		strings.ToUpper(endpointName(open)),
		ago,
		endpointName(open.Other()),
	)
}

func weatherSection(snap domain.WeatherSnapshot) string {
	s := fmt.Sprintf("\n\n🌤️ *Clima*: %s", titleCaser.String(snap.Condition))
	if snap.Advisory != "" {
		s += "\n⚠️ " + snap.Advisory
	}
	return s
}

func replyWeather(snap domain.WeatherSnapshot) string {
	s := fmt.Sprintf(
		"🌤️ *Atualização do Clima*\n"+
			"• Condição: %s\n"+
			"• Temperatura: %.1f°C",
		titleCaser.String(snap.Condition),
		snap.Temperature,
	)
	if snap.Advisory != "" {
		s += "\n\n⚠️ " + snap.Advisory
	}
	return s
}

func replyToggled(out *services.ToggleOutcome) string {
	return fmt.Sprintf(
		"🔄 *Status Atualizado*\n"+
			"🟢 %s PASSANDO\n"+
			"❌ %s PARADO",
		endpointName(out.Opened),
		endpointName(out.Closed),
	)
}

func replyStats(center, goio *services.Average, day *services.Summary) string {
	var b strings.Builder
	b.WriteString("📊 *Estatísticas do Dia*\n")
	if day != nil {
		fmt.Fprintf(&b, "• Fechamentos: %d\n", day.Count)
		fmt.Fprintf(&b, "• Tempo médio: %d min\n", int(day.Mean.Minutes()))
		fmt.Fprintf(&b, "• Pico: %02dh\n", day.BusiestHour)
	} else {
		b.WriteString("• Nenhum fechamento registrado hoje\n")
	}
	if center != nil {
		fmt.Fprintf(&b, "\n• Média QC (últimos %d): %d min", center.Samples, int(center.Mean.Minutes()))
	}
	if goio != nil {
		fmt.Fprintf(&b, "\n• Média Goioerê (últimos %d): %d min", goio.Samples, int(goio.Mean.Minutes()))
	}
	return b.String()
}

func replyHelp() string {
	return "🚦 *Sistema PARE/SIGA*\n\n" +
		"📱 *Comandos Disponíveis*\n" +
		"➡️ *!status* - Ver situação atual\n" +
		"➡️ *!alterna* - Atualizar status\n" +
		"➡️ *!stats* - Ver estatísticas\n" +
		"➡️ *!passou* - Confirmar que a pista limpou\n" +
		"➡️ *!cancelar* - Cancelar transição\n" +
		"➡️ *!tempo <min>* - Ajustar tempo de liberação\n" +
		"➡️ *!ajuda* - Ver comandos\n\n" +
		"💡 _Você também pode escrever normalmente sobre a situação do trânsito_"
}

const (
	replyLockBusy = "⚠️ *Atenção*\n" +
		"Outra pessoa está alterando o status.\n" +
		"⏳ Aguarde alguns segundos e tente novamente."

	replyThrottled = "⏳ *Aguarde*\n" +
		"Você precisa esperar alguns segundos\n" +
		"antes de tentar novamente."

	replyConfirmToggle = "⚠️ *Confirmação Necessária*\n\n" +
		"A última mudança foi há menos de 30 segundos.\n" +
		"Tem certeza que quer alterar o status?\n\n" +
		"📱 Responda com:\n" +
		"➡️ *!sim* - Para confirmar\n" +
		"➡️ *!nao* - Para cancelar"

	replyConfirmClearing = "🚗 Você está confirmando que todos os carros terminaram de passar?\n\n" +
		"Para confirmar, responda com *!sim*\n" +
		"Para cancelar, responda com *!nao*"

	replyNothingPending = "Não há confirmação pendente para você."

	replyExpired = "⚠️ Confirmação expirada. Por favor, tente a ação novamente."

	replyCancelled = "Operação cancelada."

	replyGenericError = "❌ *Erro*\n" +
		"Não foi possível alterar o status.\n" +
		"Por favor, tente novamente."

	replyTransitionActive = "⚠️ Já existe uma transição em andamento.\n" +
		"Use *!passou* quando a pista limpar\n" +
		"ou *!cancelar* para desistir."

	replyNoTransition = "Não há transição em andamento."

	replyTransitionCancelled = "✅ Transição cancelada. O status não foi alterado."

	replyNoClosures = "📊 Nenhum fechamento registrado ainda."

	replyUnknownCommand = "❓ Comando não reconhecido.\n" +
		"Use *!ajuda* para ver os comandos disponíveis."

	replyWindowUsage = "Use *!tempo <minutos>* para informar quanto tempo a liberação levou."
)

func replyTransitionStarted(t *domain.PendingTransition, window time.Duration) string {
	return fmt.Sprintf(
		"🚧 *Transição Iniciada*\n"+
			"Lado %s liberando os últimos carros.\n"+
			"⏱️ Tempo estimado: %d min\n\n"+
			"📱 Quando a pista limpar, use:\n"+
			"➡️ *!passou*",
		endpointName(t.Endpoint),
		int(window.Minutes()),
	)
}

func replyTransitionTooSoon(window time.Duration) string {
	return fmt.Sprintf(
		"⚠️ *Confirmação Necessária*\n\n"+
			"A transição começou há pouco tempo.\n"+
			"O tempo estimado de liberação é %d min.\n"+
			"Tem certeza que a pista já limpou?\n\n"+
			"📱 Responda com:\n"+
			"➡️ *!sim* - Para confirmar\n"+
			"➡️ *!nao* - Para cancelar",
		int(window.Minutes()),
	)
}

func replyWindowAdjusted(base time.Duration) string {
	return fmt.Sprintf(
		"✅ Obrigado pelo retorno!\n"+
			"⏱️ Novo tempo estimado de liberação: %d min",
		int(base.Minutes()),
	)
}

// Advertisement rotation of the local sponsor.
var adMessages = []string{
	"☕ *PRADO CAFÉ*\n📍 Quarto Centenário\n• Café fresquinho\n• Salgados na hora\n📞 (44) 9164-7725",
	"☕ *PRADO CAFÉ*\n• Cafés especiais\n• Lanches deliciosos\n📞 (44) 9164-7725",
	"☕ *PRADO CAFÉ*\n• Café premium\n• Ambiente família\n📞 (44) 9164-7725",
}
